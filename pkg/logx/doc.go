// Package logx configures ticksched's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - Level/sink changes applicable at runtime (config hot reload)
package logx
