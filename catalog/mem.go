package catalog

// MemMetastore is an in-memory reference Metastore: a small, synchronous,
// in-process backing store suitable for tests.
type MemMetastore struct {
	tables     map[string]*Table
	partitions map[string][]Partition
}

// NewMemMetastore builds an empty in-memory metastore.
func NewMemMetastore() *MemMetastore {
	return &MemMetastore{
		tables:     make(map[string]*Table),
		partitions: make(map[string][]Partition),
	}
}

// PutTable registers a table definition.
func (m *MemMetastore) PutTable(t *Table) {
	m.tables[t.Name] = t
}

// PutPartitions registers the partition list for a table.
func (m *MemMetastore) PutPartitions(tableName string, parts []Partition) {
	m.partitions[tableName] = parts
}

func (m *MemMetastore) GetTable(name string) (*Table, error) {
	t, ok := m.tables[name]
	if !ok {
		return nil, &InvalidTableError{Name: name}
	}
	return t, nil
}

func (m *MemMetastore) ListPartitions(table *Table) ([]Partition, error) {
	return m.partitions[table.Name], nil
}
