package main

import "github.com/ValentinKolb/respkv/cmd"

func main() {
	cmd.Execute()
}
