package camera

import (
	"errors"
	"fmt"

	"github.com/shirou/gopsutil/v4/mem"
)

// MemoryProbe reports the share of system memory still available.
type MemoryProbe interface {
	AvailablePercent() (int, error)
}

// SystemMemory asks the operating system for its virtual memory figures.
type SystemMemory struct{}

func (SystemMemory) AvailablePercent() (int, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, fmt.Errorf("read virtual memory: %w", err)
	}
	return availablePercent(vm)
}

func availablePercent(vm *mem.VirtualMemoryStat) (int, error) {
	if vm == nil || vm.Total == 0 {
		return 0, errors.New("total memory unknown")
	}
	return int(vm.Available * 100 / vm.Total), nil
}

// StaticMemory always reports the same percentage.
type StaticMemory int

func (s StaticMemory) AvailablePercent() (int, error) {
	return int(s), nil
}

// memoryReservePercent maps available memory onto a 0..100 progress value
// that reaches 100 once only the reserve is left.
func memoryReservePercent(avail int, reserve uint) int {
	if reserve == 0 {
		return 0
	}
	p := 100 - (avail-int(reserve))*100/int(reserve)
	return max(0, min(100, p))
}
