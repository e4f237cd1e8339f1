package extraction

import (
	"database/sql"
	"fmt"

	"github.com/tinstructor/interference/experiment"
)

const (
	getRecordsTmpl = `SELECT
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
	FROM
		experiments
	WHERE
		Identifier LIKE ?
		AND Source LIKE ?
	ORDER BY
		ID ASC;`
	getIdentifiersTmpl = `SELECT DISTINCT
		Identifier
	FROM
		experiments
	ORDER BY
		Identifier ASC;`
)

type FilterOptions struct {
	// Identifier and Source are SQL LIKE patterns, empty matches everything.
	Identifier string
	Source     string
}

// QueryRecords returns the stored records matching f in insertion order.
func QueryRecords(db *sql.DB, f *FilterOptions) ([]experiment.Record, error) {
	identifier, source := f.Identifier, f.Source
	if identifier == "" {
		identifier = "%"
	}
	if source == "" {
		source = "%"
	}

	rows, err := db.Query(getRecordsTmpl, identifier, source)
	if err != nil {
		return nil, fmt.Errorf("unable to query records: %s", err)
	}
	defer rows.Close()

	var records []experiment.Record
	for rows.Next() {
		var r experiment.Record
		var kind string
		if err := rows.Scan(
			&r.Identifier, &r.Source, &r.Index,
			&r.TRXPHY, &r.IFPHY,
			&r.TXCount, &r.RXCount, &r.IFRXCount, &r.RSSISum, &r.HasRSSI, &r.HasIF,
			&kind, &r.Setup.Prefix, &r.Setup.IFPayload, &r.Setup.TRXPayload, &r.Setup.OffsetUS, &r.Setup.SIR, &r.Setup.Attenuation,
		); err != nil {
			return nil, fmt.Errorf("unable to get record from DB: %s", err)
		}
		r.Setup.Kind = experiment.Kind(kind)
		records = append(records, r)
	}
	return records, rows.Err()
}

// Identifiers lists the analyzer runs stored in db.
func Identifiers(db *sql.DB) ([]string, error) {
	rows, err := db.Query(getIdentifiersTmpl)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
