// Package metrics records server metrics with VictoriaMetrics and exposes
// them on a small admin HTTP endpoint.
//
// Every server owns its own Registry (a metrics.Set), so several servers in
// one process (e.g. in tests) do not share counters. Recorded series:
//   - respkv_commands_total{command}, respkv_command_errors_total{command}
//   - respkv_command_duration_seconds{command} (histogram)
//   - respkv_connections_total, respkv_connections_active, respkv_protocol_errors_total
//   - respkv_aof_writes_total, respkv_aof_write_duration_seconds
//   - gauges registered by the server, e.g. respkv_keys
package metrics
