// Command awx-metrics 以 Prometheus 文本格式导出 AWX 的运行指标。
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := App().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "awx-metrics:", err)
		stop()
		os.Exit(1)
	}
}
