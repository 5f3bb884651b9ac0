package main

import (
	"github.com/wachiwi/kcamera/pkg/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logger.Fatal("kcamera failed", "error", err)
	}
}
