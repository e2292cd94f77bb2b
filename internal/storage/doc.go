// Package storage provides an optional run-history persistence layer.
//
// It records task lifecycle outcomes (fired, rejected, dropped) so operators
// can inspect what the scheduler actually did across restarts.
package storage
