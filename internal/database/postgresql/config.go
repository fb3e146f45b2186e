package postgresql

import (
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/loykin/schoolsys/internal/constants"
	"github.com/loykin/schoolsys/internal/util"
)

type Config struct {
	DSN      string `mapstructure:"dsn" yaml:"dsn"`
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password"`
	DBName   string `mapstructure:"dbname" yaml:"dbname"`
	SSLMode  string `mapstructure:"sslmode" yaml:"sslmode"`
}

// ConnString prefers an explicit DSN; otherwise it builds a URL from the
// components, defaulting each to the values the legacy DB_* variables used.
func (p Config) ConnString() string {
	if dsn, ok := util.TrimEmptyCheck(p.DSN); ok {
		return dsn
	}

	host := util.TrimWithDefault(p.Host, constants.DefaultPostgresHost)
	port := p.Port
	if port == 0 {
		port = constants.DefaultPostgresPort
	}
	fields := util.TrimSpaceFields(p.User, p.Password, p.DBName)
	user := util.TrimWithDefault(fields[0], constants.DefaultPostgresUser)
	password := fields[1]
	if p.Password == "" {
		password = constants.DefaultPostgresPassword
	}
	dbname := util.TrimWithDefault(fields[2], constants.DefaultPostgresDBName)
	ssl := util.TrimWithDefault(p.SSLMode, constants.DefaultPostgresSSLMode)

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, password),
		Host:     net.JoinHostPort(host, strconv.Itoa(port)),
		Path:     "/" + dbname,
		RawQuery: fmt.Sprintf("sslmode=%s", url.QueryEscape(ssl)),
	}
	return u.String()
}
