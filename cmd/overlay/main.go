package main

import (
	"os"

	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-overlay-translator/internal/cli"
	"github.com/nerdneilsfield/go-overlay-translator/internal/logger"
)

// overlay 版本信息，构建时通过 -ldflags 注入
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run 执行 overlay 命令并返回退出码
func run(args []string) int {
	log := logger.NewLogger(false).Named("overlay")
	defer func() {
		_ = log.Sync()
	}()

	rootCmd := cli.NewRootCommand(Version, Commit, BuildDate)
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		log.Error("overlay 执行失败", zap.String("version", Version), zap.Error(err))
		return 1
	}
	return 0
}
