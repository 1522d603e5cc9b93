// Package nested creates and updates a parent record together with its child
// records in a single transaction.
package nested

import (
	"context"
	"errors"
	"fmt"

	"albumapi/core/serializer"
	"albumapi/logger"
	"albumapi/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when the parent record does not exist.
var ErrNotFound = errors.New("not found")

// NotFoundError reports a child id in an update payload that matches no
// child of the parent.
type NotFoundError struct {
	Field string
	ID    int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("No object found to update for id=%d", e.ID)
}

// Relation maps a nested payload field to the child schema and the child
// field that references the parent.
type Relation struct {
	Field      string
	ForeignKey string
	Many       bool
	Child      *serializer.Schema

	// Association is the GORM association used to reload children and
	// OrderBy the child columns they are sorted by.
	Association string
	OrderBy     []string
}

type Config struct {
	Parent    *serializer.Schema
	Relations []Relation
}

type Reconciler struct {
	db        *gorm.DB
	parent    *serializer.Schema
	relations []relation
}

type relation struct {
	Relation
	// validation is Child without the foreign key field.
	validation *serializer.Schema
	fkColumn   string
}

type childGroup struct {
	rel     *relation
	entries []serializer.Payload
}

// New checks cfg and prepares the schemas used for validation.
func New(db *gorm.DB, cfg Config) (*Reconciler, error) {
	if cfg.Parent == nil {
		return nil, errors.New("nested: parent schema is required")
	}

	r := &Reconciler{db: db, parent: cfg.Parent}
	for _, rel := range cfg.Relations {
		f, ok := cfg.Parent.Field(rel.Field)
		if !ok || f.Kind != serializer.Nested {
			return nil, fmt.Errorf("nested: %s has no nested field %q", cfg.Parent.Name, rel.Field)
		}
		if f.Many != rel.Many {
			return nil, fmt.Errorf("nested: field %q cardinality does not match relation", rel.Field)
		}
		if rel.Child == nil {
			return nil, fmt.Errorf("nested: relation %q has no child schema", rel.Field)
		}
		fk, ok := rel.Child.Field(rel.ForeignKey)
		if !ok {
			return nil, fmt.Errorf("nested: %s has no field %q", rel.Child.Name, rel.ForeignKey)
		}

		validation := rel.Child.Without(rel.ForeignKey)
		r.parent = r.parent.WithNested(rel.Field, validation)

		fkColumn := fk.Column
		if fkColumn == "" {
			fkColumn = fk.Name
		}
		r.relations = append(r.relations, relation{Relation: rel, validation: validation, fkColumn: fkColumn})
	}
	return r, nil
}

// splitPayload separates the parent's own fields from the nested child groups.
func (r *Reconciler) splitPayload(data serializer.Payload) (serializer.Payload, []childGroup) {
	parentFields := make(serializer.Payload, len(data))
	for k, v := range data {
		parentFields[k] = v
	}

	var groups []childGroup
	for i := range r.relations {
		rel := &r.relations[i]
		v, ok := parentFields[rel.Field]
		delete(parentFields, rel.Field)
		if !ok || v == nil {
			continue
		}
		groups = append(groups, childGroup{rel: rel, entries: entriesOf(v)})
	}
	return parentFields, groups
}

func entriesOf(v interface{}) []serializer.Payload {
	if obj, ok := serializer.AsObject(v); ok {
		return []serializer.Payload{obj}
	}
	switch t := v.(type) {
	case []serializer.Payload:
		return t
	case []interface{}:
		out := make([]serializer.Payload, 0, len(t))
		for _, item := range t {
			if obj, ok := serializer.AsObject(item); ok {
				out = append(out, obj)
			}
		}
		return out
	}
	return nil
}

// Create validates raw, creates the parent and then every nested child with
// its foreign key pointing at the new parent. Nothing is written if any step
// fails.
func (r *Reconciler) Create(ctx context.Context, raw serializer.Payload) (model.Record, error) {
	validated, err := r.parent.Validate(raw, false)
	if err != nil {
		return nil, err
	}
	parentFields, groups := r.splitPayload(validated)

	var created model.Record
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec := r.parent.NewRecord()
		if err := r.parent.Decode(parentFields, rec); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Create(rec).Error; err != nil {
			return fmt.Errorf("failed to create %s: %w", r.parent.Name, err)
		}

		for _, g := range groups {
			if err := r.applyChildGroup(tx, rec.PrimaryKey(), g, false); err != nil {
				return err
			}
		}

		created, err = r.load(tx, rec.PrimaryKey())
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Nested create completed",
		logger.String("schema", r.parent.Name),
		logger.Int64("id", created.PrimaryKey()),
	)
	return created, nil
}

// Update applies raw to the parent identified by id. Children carrying an id
// are updated in place, children without one are created, and children not
// mentioned are left alone. The parent's own fields are written last.
func (r *Reconciler) Update(ctx context.Context, id int64, raw serializer.Payload, partial bool) (model.Record, error) {
	var updated model.Record
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec := r.parent.NewRecord()
		if err := tx.First(rec, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to load %s %d: %w", r.parent.Name, id, err)
		}

		validated, err := r.parent.Validate(raw, partial)
		if err != nil {
			return err
		}
		parentFields, _ := r.splitPayload(validated)

		// children are reconciled from the raw payload, which still carries ids
		_, groups := r.splitPayload(raw)
		for _, g := range groups {
			if len(g.entries) == 0 {
				continue
			}
			if err := r.applyChildGroup(tx, id, g, partial); err != nil {
				return err
			}
		}

		if cols := r.parent.Columns(parentFields); len(cols) > 0 {
			if err := tx.Model(rec).Updates(cols).Error; err != nil {
				return fmt.Errorf("failed to update %s %d: %w", r.parent.Name, id, err)
			}
		}

		updated, err = r.load(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Nested update completed",
		logger.String("schema", r.parent.Name),
		logger.Int64("id", id),
		logger.Bool("partial", partial),
	)
	return updated, nil
}

// applyChildGroup writes every entry of g under parentID.
func (r *Reconciler) applyChildGroup(tx *gorm.DB, parentID int64, g childGroup, partial bool) error {
	rel := g.rel
	for i, entry := range g.entries {
		prefix := rel.Field
		if rel.Many {
			prefix = fmt.Sprintf("%s[%d]", rel.Field, i)
		}

		childID, hasID, valid := entryID(entry)
		if !valid {
			return serializer.NewValidationError(prefix+".id", "A valid integer is required.")
		}
		var err error
		if hasID {
			err = r.updateChild(tx, rel, parentID, childID, entry, partial, prefix)
		} else {
			err = r.createChild(tx, rel, parentID, entry, prefix)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// entryID reads the optional child id. A zero or empty id means "create".
func entryID(entry serializer.Payload) (id int64, present bool, valid bool) {
	v, ok := entry["id"]
	if !ok || v == nil || v == "" {
		return 0, false, true
	}
	id, ok = serializer.ToInt64(v)
	if !ok {
		return 0, false, false
	}
	return id, id != 0, true
}

func (r *Reconciler) createChild(tx *gorm.DB, rel *relation, parentID int64, entry serializer.Payload, prefix string) error {
	validated, err := rel.validation.Validate(entry, false)
	if err != nil {
		return prefixed(prefix, err)
	}
	validated[rel.ForeignKey] = parentID

	child := rel.Child.NewRecord()
	if err := rel.Child.Decode(validated, child); err != nil {
		return err
	}
	if err := tx.Create(child).Error; err != nil {
		return fmt.Errorf("failed to create %s for %s %d: %w", rel.Child.Name, r.parent.Name, parentID, err)
	}

	logger.Debug("Nested child created",
		logger.String("schema", rel.Child.Name),
		logger.Int64("id", child.PrimaryKey()),
		logger.Int64("parentId", parentID),
	)
	return nil
}

func (r *Reconciler) updateChild(tx *gorm.DB, rel *relation, parentID, childID int64, entry serializer.Payload, partial bool, prefix string) error {
	child := rel.Child.NewRecord()
	err := tx.Where(map[string]interface{}{"id": childID, rel.fkColumn: parentID}).First(child).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &NotFoundError{Field: rel.Field, ID: childID}
		}
		return fmt.Errorf("failed to load %s %d: %w", rel.Child.Name, childID, err)
	}

	validated, err := rel.validation.Validate(entry, partial)
	if err != nil {
		return prefixed(prefix, err)
	}

	cols := rel.Child.Columns(validated)
	if len(cols) == 0 {
		return nil
	}
	if err := tx.Model(child).Updates(cols).Error; err != nil {
		return fmt.Errorf("failed to update %s %d: %w", rel.Child.Name, childID, err)
	}

	logger.Debug("Nested child updated",
		logger.String("schema", rel.Child.Name),
		logger.Int64("id", childID),
		logger.Int("columns", len(cols)),
	)
	return nil
}

func prefixed(prefix string, err error) error {
	var verr *serializer.ValidationError
	if !errors.As(err, &verr) {
		return err
	}
	out := &serializer.ValidationError{}
	out.Merge(prefix, verr)
	return out
}

// load reads the parent with its children.
func (r *Reconciler) load(tx *gorm.DB, id int64) (model.Record, error) {
	rec := r.parent.NewRecord()
	q := tx
	for _, rel := range r.relations {
		if rel.Association == "" {
			continue
		}
		orderBy := rel.OrderBy
		q = q.Preload(rel.Association, func(db *gorm.DB) *gorm.DB {
			for _, col := range orderBy {
				db = db.Order(clause.OrderByColumn{Column: clause.Column{Name: col}})
			}
			return db
		})
	}
	if err := q.First(rec, id).Error; err != nil {
		return nil, fmt.Errorf("failed to reload %s %d: %w", r.parent.Name, id, err)
	}
	return rec, nil
}
