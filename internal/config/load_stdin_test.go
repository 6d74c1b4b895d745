package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestValidateSingleStdinFileSource(t *testing.T) {
	tests := []struct {
		name     string
		dsn      string
		password string
		wantErr  bool
	}{
		{name: "files only", dsn: "/run/secrets/dsn", password: "/run/secrets/password"},
		{name: "dsn from stdin", dsn: "@-", password: "/run/secrets/password"},
		{name: "password from stdin", password: "@-"},
		{name: "both from stdin", dsn: "@-", password: " @- ", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			v.Set("database.dsn_file", tt.dsn)
			v.Set("database.password_file", tt.password)

			err := validateSingleStdinFileSource(v)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), "database.dsn_file")
				assert.Contains(t, err.Error(), "database.password_file")
			}
		})
	}
}
