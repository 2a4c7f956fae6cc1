package wellknown

import (
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

// LoadMariaDB reads the protocol and ICMP tables from a MariaDB/MySQL
// database. The default applications document still comes from
// defaultsPath, or the embedded copy when empty.
//
// Expected schema:
//
//	ref_protocols(kind VARCHAR, name VARCHAR, number INT)  -- kind: protocol|port
//	ref_icmp(kind VARCHAR, name VARCHAR, number INT)       -- kind: type|code
func LoadMariaDB(dsn, defaultsPath string) (*Lookup, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReferenceData, err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReferenceData, err)
	}

	l := newLookup()
	if err := loadRows(db, "SELECT kind, name, number FROM ref_protocols", l.addProtocolEntry); err != nil {
		return nil, fmt.Errorf("%w: ref_protocols: %v", ErrReferenceData, err)
	}
	if err := loadRows(db, "SELECT kind, name, number FROM ref_icmp", l.addICMPEntry); err != nil {
		return nil, fmt.Errorf("%w: ref_icmp: %v", ErrReferenceData, err)
	}
	if err := l.loadDefaults(defaultsPath); err != nil {
		return nil, err
	}
	return l, nil
}

func loadRows(db *sql.DB, query string, add func(kind, name string, number int) error) error {
	rows, err := db.Query(query)
	if err != nil {
		return err
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var kind, name string
		var number int
		if err := rows.Scan(&kind, &name, &number); err != nil {
			return err
		}
		if err := add(kind, name, number); err != nil {
			return err
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("table is empty")
	}
	return nil
}
