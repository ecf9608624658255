package catalog

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteMetastore persists table schemas and partition lists in a real
// embedded database, the way canonica-labs persists its catalog state,
// instead of an in-process map. It implements Metastore.
type SQLiteMetastore struct {
	db *sql.DB
}

// OpenSQLiteMetastore opens (creating if necessary) a sqlite-backed
// metastore at path. Use ":memory:" for an ephemeral store in tests.
func OpenSQLiteMetastore(path string) (*SQLiteMetastore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open sqlite metastore: %w", err)
	}
	m := &SQLiteMetastore{db: db}
	if err := m.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return m, nil
}

func (m *SQLiteMetastore) migrate() error {
	_, err := m.db.Exec(`
		CREATE TABLE IF NOT EXISTS tables (
			name TEXT PRIMARY KEY,
			columns_json TEXT NOT NULL,
			partition_cols_json TEXT NOT NULL,
			bucket_cols_json TEXT NOT NULL,
			num_buckets INTEGER NOT NULL,
			input_format TEXT NOT NULL,
			output_format TEXT NOT NULL,
			location TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS partitions (
			table_name TEXT NOT NULL,
			values_json TEXT NOT NULL,
			location TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("catalog: migrate sqlite metastore: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (m *SQLiteMetastore) Close() error { return m.db.Close() }

// PutTable upserts a table definition.
func (m *SQLiteMetastore) PutTable(t *Table) error {
	cols, err := json.Marshal(t.Columns)
	if err != nil {
		return err
	}
	partCols, err := json.Marshal(t.PartitionCols)
	if err != nil {
		return err
	}
	bucketCols, err := json.Marshal(t.BucketCols)
	if err != nil {
		return err
	}
	_, err = m.db.Exec(`
		INSERT INTO tables (name, columns_json, partition_cols_json, bucket_cols_json, num_buckets, input_format, output_format, location)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			columns_json=excluded.columns_json,
			partition_cols_json=excluded.partition_cols_json,
			bucket_cols_json=excluded.bucket_cols_json,
			num_buckets=excluded.num_buckets,
			input_format=excluded.input_format,
			output_format=excluded.output_format,
			location=excluded.location
	`, t.Name, string(cols), string(partCols), string(bucketCols), t.NumBuckets, t.InputFormat, t.OutputFormat, t.Location)
	if err != nil {
		return fmt.Errorf("catalog: put table %s: %w", t.Name, err)
	}
	return nil
}

// PutPartitions replaces the partition list for a table.
func (m *SQLiteMetastore) PutPartitions(tableName string, parts []Partition) error {
	tx, err := m.db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM partitions WHERE table_name = ?`, tableName); err != nil {
		tx.Rollback()
		return err
	}
	for _, p := range parts {
		vj, err := json.Marshal(p.Values)
		if err != nil {
			tx.Rollback()
			return err
		}
		if _, err := tx.Exec(`INSERT INTO partitions (table_name, values_json, location) VALUES (?, ?, ?)`,
			tableName, string(vj), p.Location); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (m *SQLiteMetastore) GetTable(name string) (*Table, error) {
	row := m.db.QueryRow(`SELECT columns_json, partition_cols_json, bucket_cols_json, num_buckets, input_format, output_format, location FROM tables WHERE name = ?`, name)
	var columnsJSON, partColsJSON, bucketColsJSON, inputFmt, outputFmt, location string
	var numBuckets int
	if err := row.Scan(&columnsJSON, &partColsJSON, &bucketColsJSON, &numBuckets, &inputFmt, &outputFmt, &location); err != nil {
		if err == sql.ErrNoRows {
			return nil, &InvalidTableError{Name: name}
		}
		return nil, fmt.Errorf("catalog: get table %s: %w", name, err)
	}
	t := &Table{Name: name, NumBuckets: numBuckets, InputFormat: inputFmt, OutputFormat: outputFmt, Location: location}
	if err := json.Unmarshal([]byte(columnsJSON), &t.Columns); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(partColsJSON), &t.PartitionCols); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(bucketColsJSON), &t.BucketCols); err != nil {
		return nil, err
	}
	return t, nil
}

func (m *SQLiteMetastore) ListPartitions(table *Table) ([]Partition, error) {
	rows, err := m.db.Query(`SELECT values_json, location FROM partitions WHERE table_name = ?`, table.Name)
	if err != nil {
		return nil, fmt.Errorf("catalog: list partitions for %s: %w", table.Name, err)
	}
	defer rows.Close()
	var out []Partition
	for rows.Next() {
		var vj, location string
		if err := rows.Scan(&vj, &location); err != nil {
			return nil, err
		}
		var values map[string]string
		if err := json.Unmarshal([]byte(vj), &values); err != nil {
			return nil, err
		}
		out = append(out, Partition{Values: values, Location: location})
	}
	return out, rows.Err()
}
