package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	go_ora "github.com/sijms/go-ora/v2"
)

// tlsConfigName is the name used to register custom TLS configs with the MySQL driver.
const tlsConfigName = "relmap-custom"

// Supported drivers.
const (
	DriverMySQL     = "mysql"
	DriverTiDB      = "tidb"
	DriverPostgres  = "postgres"
	DriverPgx       = "pgx"
	DriverSQLServer = "sqlserver"
	DriverOracle    = "oracle"
)

var defaultPorts = map[string]int{
	DriverMySQL:     3306,
	DriverTiDB:      4000,
	DriverPostgres:  5432,
	DriverPgx:       5432,
	DriverSQLServer: 1433,
	DriverOracle:    1521,
}

// SQLDriverName returns the database/sql driver to open. TiDB speaks the
// MySQL protocol.
func (d *DatabaseConfig) SQLDriverName() string {
	if d.Driver == DriverTiDB {
		return DriverMySQL
	}
	return d.Driver
}

// EffectivePort returns the configured port or the driver's default.
func (d *DatabaseConfig) EffectivePort() int {
	if d.Port != 0 {
		return d.Port
	}
	return defaultPorts[d.Driver]
}

// EffectiveSchema returns the schema to introspect. MySQL-family databases
// use the database name when no schema is set.
func (d *DatabaseConfig) EffectiveSchema() string {
	if d.Schema != "" {
		return d.Schema
	}
	if d.SQLDriverName() == DriverMySQL {
		if d.ConnectionString != "" {
			if parsed, err := mysql.ParseDSN(d.ConnectionString); err == nil {
				return parsed.DBName
			}
		}
		return d.Database
	}
	return ""
}

// DSN returns a data source name for the configured driver.
// If ConnectionString is set it is used directly, with MySQL connections
// normalized to parse times in UTC.
func (d *DatabaseConfig) DSN() (string, error) {
	switch d.Driver {
	case DriverMySQL, DriverTiDB:
		return d.mysqlDSN()
	case DriverPostgres, DriverPgx:
		if d.ConnectionString != "" {
			return d.ConnectionString, nil
		}
		return d.postgresDSN(), nil
	case DriverSQLServer:
		if d.ConnectionString != "" {
			return d.ConnectionString, nil
		}
		return d.sqlServerDSN(), nil
	case DriverOracle:
		if d.ConnectionString != "" {
			return d.ConnectionString, nil
		}
		return go_ora.BuildUrl(d.Host, d.EffectivePort(), d.Database, d.User, d.Password, d.oracleOptions()), nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", d.Driver)
	}
}

func (d *DatabaseConfig) mysqlDSN() (string, error) {
	var cfg *mysql.Config
	if d.ConnectionString != "" {
		parsed, err := mysql.ParseDSN(d.ConnectionString)
		if err != nil {
			return "", fmt.Errorf("database.dsn is invalid: %w", err)
		}
		cfg = parsed
	} else {
		cfg = mysql.NewConfig()
		cfg.User = d.User
		cfg.Passwd = d.Password
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(d.Host, strconv.Itoa(d.EffectivePort()))
		cfg.DBName = d.Database
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	if cfg.TLSConfig == "" {
		cfg.TLSConfig = d.effectiveTLSParam()
	}
	return cfg.FormatDSN(), nil
}

func (d *DatabaseConfig) postgresDSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   net.JoinHostPort(d.Host, strconv.Itoa(d.EffectivePort())),
		Path:   "/" + d.Database,
	}
	q := url.Values{}
	q.Set("sslmode", postgresSSLMode(d.TLS.Mode))
	if d.TLS.CAFile != "" {
		q.Set("sslrootcert", d.TLS.CAFile)
	}
	if d.TLS.CertFile != "" && d.TLS.KeyFile != "" {
		q.Set("sslcert", d.TLS.CertFile)
		q.Set("sslkey", d.TLS.KeyFile)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func postgresSSLMode(mode string) string {
	switch mode {
	case "skip-verify":
		return "require"
	case "verify-ca":
		return "verify-ca"
	case "verify-full":
		return "verify-full"
	default:
		return "disable"
	}
}

func (d *DatabaseConfig) sqlServerDSN() string {
	u := url.URL{
		Scheme: "sqlserver",
		User:   url.UserPassword(d.User, d.Password),
		Host:   net.JoinHostPort(d.Host, strconv.Itoa(d.EffectivePort())),
	}
	q := url.Values{}
	if d.Database != "" {
		q.Set("database", d.Database)
	}
	switch d.TLS.Mode {
	case "", "off":
		q.Set("encrypt", "disable")
	case "skip-verify":
		q.Set("encrypt", "true")
		q.Set("TrustServerCertificate", "true")
	default:
		q.Set("encrypt", "true")
		if d.TLS.CAFile != "" {
			q.Set("certificate", d.TLS.CAFile)
		}
		if d.TLS.ServerName != "" {
			q.Set("hostNameInCertificate", d.TLS.ServerName)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (d *DatabaseConfig) oracleOptions() map[string]string {
	switch d.TLS.Mode {
	case "", "off":
		return nil
	case "skip-verify":
		return map[string]string{"SSL": "enable", "SSL VERIFY": "false"}
	default:
		return map[string]string{"SSL": "enable", "SSL VERIFY": "true"}
	}
}

// effectiveTLSParam returns the TLS parameter value for a MySQL DSN.
// Returns the registered config name for custom TLS, or empty string if no TLS is configured.
func (d *DatabaseConfig) effectiveTLSParam() string {
	switch d.TLS.Mode {
	case "":
		return ""
	case "off":
		return "false"
	case "skip-verify":
		return "skip-verify"
	case "verify-ca", "verify-full":
		return tlsConfigName
	default:
		return d.TLS.Mode
	}
}

// RegisterTLS registers a custom TLS configuration with the MySQL driver.
// Must be called before opening a MySQL connection in verify-ca or verify-full mode.
// Returns nil if no custom TLS configuration is needed.
func (d *DatabaseConfig) RegisterTLS() error {
	if d.SQLDriverName() != DriverMySQL {
		return nil
	}
	mode := d.TLS.Mode
	if mode != "verify-ca" && mode != "verify-full" {
		return nil
	}

	tlsCfg, err := d.buildTLSConfig()
	if err != nil {
		return fmt.Errorf("failed to build TLS config: %w", err)
	}

	if err := mysql.RegisterTLSConfig(tlsConfigName, tlsCfg); err != nil {
		return fmt.Errorf("failed to register TLS config: %w", err)
	}
	return nil
}

func (d *DatabaseConfig) buildTLSConfig() (*tls.Config, error) {
	tlsCfg := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}

	if d.TLS.CAFile != "" {
		caCert, err := os.ReadFile(d.TLS.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file %q: %w", d.TLS.CAFile, err)
		}
		certPool := x509.NewCertPool()
		if !certPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate from %q", d.TLS.CAFile)
		}
		tlsCfg.RootCAs = certPool
	}

	if d.TLS.CertFile != "" && d.TLS.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(d.TLS.CertFile, d.TLS.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	} else if d.TLS.CertFile != "" || d.TLS.KeyFile != "" {
		return nil, fmt.Errorf("both cert_file and key_file must be specified for client certificate authentication")
	}

	if d.TLS.Mode == "verify-full" {
		tlsCfg.ServerName = d.TLS.ServerName
		if tlsCfg.ServerName == "" {
			tlsCfg.ServerName = strings.TrimSpace(d.Host)
		}
	}
	return tlsCfg, nil
}
