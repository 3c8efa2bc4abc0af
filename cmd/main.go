package main

import (
	"os"

	"ambient-quiz-service/internal/cli"
	"github.com/sirupsen/logrus"
)

func main() {
	if err := cli.Execute(); err != nil {
		logrus.WithError(err).Error("quiz-service exited")
		os.Exit(1)
	}
}
