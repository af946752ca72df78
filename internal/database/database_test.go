package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigDSN(t *testing.T) {
	cfg := Config{Host: "db", Port: "5433", User: "app", Password: "secret", DBName: "tickets", SSLMode: "require"}
	assert.Equal(t, "host=db port=5433 user=app password=secret dbname=tickets sslmode=require", cfg.DSN())

	cfg.URL = "postgres://app@db/tickets"
	assert.Equal(t, "postgres://app@db/tickets", cfg.DSN())
}
