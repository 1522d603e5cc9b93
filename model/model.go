package model

// Record is a stored row identified by an integer surrogate key.
type Record interface {
	PrimaryKey() int64
}

// All lists the models handled by schema migration, parents first.
func All() []interface{} {
	return []interface{}{&Album{}, &Track{}}
}
