package config

import (
	"bookcatalog/internal/infrastructure/database"
)

// LoadDatabaseConfig chuyển DatabaseConfig sang database.DBConfig
func (c *Config) LoadDatabaseConfig() *database.DBConfig {
	return &database.DBConfig{
		URL:               c.Database.URL,
		Host:              c.Database.Host,
		Port:              c.Database.Port,
		Username:          c.Database.User,
		Password:          c.Database.Password,
		DBName:            c.Database.Database,
		SSLMode:           c.Database.SSLMode,
		ApplicationName:   c.App.Name,
		MaxConns:          int32(c.Database.MaxConns),
		MinConns:          int32(c.Database.MinConns),
		MaxConnLifetime:   c.Database.MaxConnLifetime,
		MaxConnIdleTime:   c.Database.MaxConnIdleTime,
		HealthCheckPeriod: c.Database.HealthCheckPeriod,
		MaxRetries:        c.Database.MaxRetries,
		RetryDelay:        c.Database.RetryDelay,
		ConnectTimeout:    c.Database.ConnectTimeout,
	}
}
