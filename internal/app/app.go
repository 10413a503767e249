package app

import "github.com/sirupsen/logrus"

type App struct {
	Cfg *Cfg
}

func InitApp() (*App, error) {
	cfg, err := initConfig()
	if err != nil {
		return nil, err
	}

	if err := initLogger(cfg.LogLevel, cfg.LogFormat); err != nil {
		return nil, err
	}

	// the journal is optional
	if cfg.Postgres.Host != "" {
		if err := initDatabase(cfg.Postgres); err != nil {
			return nil, err
		}
	} else {
		logrus.Warn("[APP] POSTGRES_HOST is not set, transfers will not be journaled")
	}

	initTLB()

	return &App{Cfg: cfg}, nil
}
