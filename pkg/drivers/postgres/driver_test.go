package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leaporm/pkg/driver"
)

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		name     string
		config   driver.Config
		expected string
	}{
		{
			name: "basic connection",
			config: driver.Config{
				Host:     "localhost",
				Port:     5432,
				Database: "testdb",
				Username: "user",
				Password: "pass",
			},
			expected: "host=localhost port=5432 dbname=testdb sslmode=disable user=user password=pass",
		},
		{
			name: "with custom sslmode",
			config: driver.Config{
				Host:     "prod.example.com",
				Port:     5432,
				Database: "proddb",
				Username: "admin",
				Options:  map[string]string{"sslmode": "require"},
			},
			expected: "host=prod.example.com port=5432 dbname=proddb sslmode=require user=admin",
		},
		{
			name: "defaults",
			config: driver.Config{
				Database: "mydb",
			},
			expected: "host=localhost port=5432 dbname=mydb sslmode=disable",
		},
		{
			name: "custom port",
			config: driver.Config{
				Host:     "db.example.com",
				Port:     5433,
				Database: "analytics",
				Username: "analyst",
			},
			expected: "host=db.example.com port=5433 dbname=analytics sslmode=disable user=analyst",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dsn := buildDSN(tt.config)
			assert.Equal(t, tt.expected, dsn)
		})
	}
}

func TestSplitQualified(t *testing.T) {
	tests := []struct {
		input  string
		schema string
		name   string
	}{
		{"users", "public", "users"},
		{"sales.orders", "sales", "orders"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			schema, name := splitQualified(tt.input)
			assert.Equal(t, tt.schema, schema)
			assert.Equal(t, tt.name, name)
		})
	}
}

func TestDriver_Dialect(t *testing.T) {
	d := New(nil)
	assert.Equal(t, "postgres", d.Dialect.Name)
	assert.Equal(t, "SELECT lastval()", d.Dialect.IdentityQuery)
}

func TestDriver_IsRegistered(t *testing.T) {
	assert.True(t, driver.IsRegistered("postgres"))
}

func TestDriver_NotConnected(t *testing.T) {
	d := New(nil)

	_, err := d.TableMetadata(context.Background(), "users")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not established")
}
