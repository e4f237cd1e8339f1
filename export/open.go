package export

import (
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	// Blind import support for sqlite3 used by OpenSQLite.
	_ "github.com/mattn/go-sqlite3"
)

// OpenSQLite opens (and creates if needed) the sqlite DB file at path.
func OpenSQLite(path string) (*SQL, error) {
	db, err := sql.Open(string(DialectSQLite), path)
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite DB %q: %s", path, err)
	}
	// sqlite doesn't like concurrent writers on the same file.
	db.SetMaxOpenConns(1)
	return &SQL{DB: db, Dialect: DialectSQLite}, nil
}

// MySQLOptions describes how to reach a MySQL server.
type MySQLOptions struct {
	Server string
	User   string
	// PasswordFile holds the password of User.
	PasswordFile string
	DBName       string
}

// OpenMySQL connects to the MySQL DB described by opts.
func OpenMySQL(opts *MySQLOptions) (*SQL, error) {
	pass, err := os.ReadFile(opts.PasswordFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read MySQL password file %q: %s", opts.PasswordFile, err)
	}
	cfg := mysql.Config{
		User:                 opts.User,
		Passwd:               strings.TrimSpace(string(pass)),
		Net:                  "tcp",
		Addr:                 opts.Server,
		DBName:               opts.DBName,
		AllowNativePasswords: true,
	}
	db, err := sql.Open(string(DialectMySQL), cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("unable to open MySQL DB %q: %s", opts.Server, err)
	}
	db.SetConnMaxLifetime(3 * time.Minute)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	return &SQL{DB: db, Dialect: DialectMySQL}, nil
}
