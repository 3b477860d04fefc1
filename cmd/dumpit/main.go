package main

import (
	"flag"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/vexchange/internal/dbg"
)

func dumpAll(logger *zap.Logger, out string, inputs []string) error {
	binFile, err := os.Create(out)
	if err != nil {
		return err
	}
	defer func(binFile *os.File) {
		_ = binFile.Close()
	}(binFile)

	for _, input := range inputs {
		csvFile, err := os.Open(input)
		if err != nil {
			_ = os.Remove(out)
			return err
		}
		n, err := convertKlines(csvFile, binFile)
		_ = csvFile.Close()
		if err != nil {
			_ = os.Remove(out)
			return err
		}
		logger.Info("dump finished", zap.String("file", input), zap.Int("candles", n))
	}

	return nil
}

func dumpSynthetic(logger *zap.Logger, out string, start time.Time, duration time.Duration, seed int64, mu, sigma float64) error {
	binFile, err := os.Create(out)
	if err != nil {
		return err
	}
	defer func(binFile *os.File) {
		_ = binFile.Close()
	}(binFile)

	n, err := writeSynthetic(logger, binFile, start, duration, seed, mu, sigma)
	if err != nil {
		_ = os.Remove(out)
		return err
	}
	logger.Info("synthetic dump finished", zap.Int("candles", n))
	return nil
}

func main() {
	out := flag.String("out", "BTCUSDT.bin", "output dataset")
	synth := flag.Bool("synthetic", false, "generate a synthetic BTCUSDT dataset instead of converting csv files")
	start := flag.String("start", "2021-01-01T00:00:00Z", "synthetic start time, RFC 3339")
	duration := flag.Duration("duration", 24*time.Hour, "synthetic duration")
	seed := flag.Int64("seed", 1, "synthetic random seed")
	mu := flag.Float64("mu", 0.05, "synthetic annual drift")
	sigma := flag.Float64("sigma", 0.6, "synthetic annual volatility")
	flag.Parse()

	logger := dbg.NewDevLogger()
	defer func(logger *zap.Logger) {
		_ = logger.Sync()
	}(logger)

	if *synth {
		startTime, err := time.Parse(time.RFC3339, *start)
		if err != nil {
			logger.Fatal("invalid start time", zap.Error(err))
		}
		if err := dumpSynthetic(logger, *out, startTime.UTC(), *duration, *seed, *mu, *sigma); err != nil {
			logger.Fatal("failed to dump", zap.Error(err))
		}
		return
	}

	if flag.NArg() == 0 {
		logger.Fatal("at least one kline csv file is required")
	}
	if err := dumpAll(logger, *out, flag.Args()); err != nil {
		logger.Fatal("failed to dump", zap.Error(err))
	}
	logger.Info("done", zap.String("out", *out))
}
