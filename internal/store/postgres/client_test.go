package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDSN(t *testing.T) {
	assert.Equal(t, "postgres://u:p@db:5432/ppm?sslmode=disable",
		DSN(ClientConfig{Host: "db", Database: "ppm", User: "u", Password: "p"}))
	assert.Equal(t, "postgres://u:p@db:6543/ppm?sslmode=require",
		DSN(ClientConfig{Host: "db", Port: 6543, Database: "ppm", User: "u", Password: "p", SSLMode: "require"}))
	assert.Equal(t, "postgres://explicit", DSN(ClientConfig{DSN: "postgres://explicit", Host: "ignored"}))
}
