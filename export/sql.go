package export

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/golang/glog"

	"github.com/tinstructor/interference/experiment"
)

// Dialect is the database/sql driver name of the backing database.
type Dialect string

const (
	DialectSQLite Dialect = "sqlite3"
	DialectMySQL  Dialect = "mysql"
)

const (
	sqlRecordCountInfo = 1000

	sqliteCreateTableTmpl = `CREATE TABLE IF NOT EXISTS experiments (
		"ID"              INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
		"Identifier"      TEXT NOT NULL,
		"Source"          TEXT NOT NULL,
		"ExperimentIndex" INTEGER,
		"TRXPHY"          TEXT NOT NULL,
		"IFPHY"           TEXT NOT NULL,
		"TXCount"         INTEGER,
		"RXCount"         INTEGER,
		"IFRXCount"       INTEGER,
		"RSSISum"         REAL,
		"HasRSSI"         INTEGER,
		"HasIF"           INTEGER,
		"Kind"            TEXT,
		"Prefix"          TEXT,
		"IFPayload"       INTEGER,
		"TRXPayload"      INTEGER,
		"OffsetUS"        INTEGER,
		"SIR"             INTEGER,
		"Attenuation"     INTEGER
	);`
	mysqlCreateTableTmpl = "CREATE TABLE IF NOT EXISTS experiments (" +
		"`ID` BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY," +
		"`Identifier` VARCHAR(64) NOT NULL," +
		"`Source` VARCHAR(255) NOT NULL," +
		"`ExperimentIndex` INT," +
		"`TRXPHY` VARCHAR(64) NOT NULL," +
		"`IFPHY` VARCHAR(64) NOT NULL," +
		"`TXCount` INT," +
		"`RXCount` INT," +
		"`IFRXCount` INT," +
		"`RSSISum` DOUBLE," +
		"`HasRSSI` BOOLEAN," +
		"`HasIF` BOOLEAN," +
		"`Kind` VARCHAR(32)," +
		"`Prefix` VARCHAR(32)," +
		"`IFPayload` INT," +
		"`TRXPayload` INT," +
		"`OffsetUS` INT," +
		"`SIR` INT," +
		"`Attenuation` INT" +
		");"
	insertRecordTmpl = `INSERT INTO experiments (
		Identifier,
		Source,
		ExperimentIndex,
		TRXPHY,
		IFPHY,
		TXCount,
		RXCount,
		IFRXCount,
		RSSISum,
		HasRSSI,
		HasIF,
		Kind,
		Prefix,
		IFPayload,
		TRXPayload,
		OffsetUS,
		SIR,
		Attenuation
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`
)

// SQL stores records in the experiments table of a SQLite or MySQL database.
type SQL struct {
	DB      *sql.DB
	Dialect Dialect
}

func (s *SQL) Write(ctx context.Context, records <-chan experiment.Record) error {
	if err := s.CreateTableIfNotExists(ctx); err != nil {
		return fmt.Errorf("unable to create table: %s", err)
	}
	statement, err := s.DB.PrepareContext(ctx, insertRecordTmpl)
	if err != nil {
		return fmt.Errorf("unable to prepare insert: %s", err)
	}
	defer statement.Close()

	counts := map[string]int{
		"error":   0,
		"success": 0,
		"total":   0,
	}
	for rec := range records {
		counts["total"] += 1
		if err := insertRecord(ctx, statement, rec); err != nil {
			counts["error"] += 1
			glog.Warningf("error storing experiment %d in %s DB: %s\n", rec.Index, s.Dialect, err)
			continue
		}
		counts["success"] += 1
		if counts["total"]%sqlRecordCountInfo == 0 {
			glog.Infof("Record export counts: %+v\n", counts)
		}
	}
	glog.V(1).Infof("Record export counts: %+v\n", counts)

	if counts["error"] > 0 {
		return fmt.Errorf("%d of %d records could not be stored", counts["error"], counts["total"])
	}
	return nil
}

func (s *SQL) CreateTableIfNotExists(ctx context.Context) error {
	tmpl := sqliteCreateTableTmpl
	if s.Dialect == DialectMySQL {
		tmpl = mysqlCreateTableTmpl
	}
	_, err := s.DB.ExecContext(ctx, tmpl)
	return err
}

func insertRecord(ctx context.Context, statement *sql.Stmt, r experiment.Record) error {
	_, err := statement.ExecContext(ctx,
		r.Identifier, r.Source, r.Index,
		r.TRXPHY, r.IFPHY,
		r.TXCount, r.RXCount, r.IFRXCount, r.RSSISum, r.HasRSSI, r.HasIF,
		string(r.Setup.Kind), r.Setup.Prefix, r.Setup.IFPayload, r.Setup.TRXPayload, r.Setup.OffsetUS, r.Setup.SIR, r.Setup.Attenuation,
	)
	return err
}
