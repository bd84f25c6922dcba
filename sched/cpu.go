// Package sched implements the per-CPU round-robin scheduler: one
// goroutine per simulated CPU, each running its own dispatch loop
// against state shared through the big kernel lock
// (env.Table.Lock/Unlock).
package sched

import (
	"zjos-go/abi"
	"zjos-go/env"
)

// CPU holds one processor's state: an identifier, the environment it
// most recently ran, and a dedicated page-sized kernel stack.
type CPU struct {
	ID          int
	CurEnv      *env.Env
	KernelStack []byte
}

// NewCPU allocates one CPU's state, including its page-sized kernel
// stack.
func NewCPU(id int) *CPU {
	return &CPU{ID: id, KernelStack: make([]byte, abi.PageSize)}
}
