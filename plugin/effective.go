package plugin

import "encoding/json"

// Resolution is the outcome of running block data through a plugin's
// migrate-then-validate pipeline.
type Resolution struct {
	// Data is the value to render: the validated data, or the plugin's
	// default data when validation failed.
	Data any

	// Valid reports whether the effective data passed the schema.
	Valid bool

	// Migrated reports whether a migrator produced the effective data.
	Migrated bool

	// MigrateErr is set when the migrator itself failed.
	MigrateErr error

	// Errors lists the schema violations of the effective data.
	Errors []FieldError
}

// EffectiveVersion returns the stored block version, defaulting to 1.
func EffectiveVersion(version float64) float64 {
	if version <= 0 {
		return 1
	}
	return version
}

// Effective computes the data a block renders with. Data stored under a
// version older than the plugin's is migrated first when a migrator exists;
// the result is validated and replaced by the default data if it fails.
func Effective(p Plugin, version float64, raw json.RawMessage) Resolution {
	var res Resolution

	data := raw
	if EffectiveVersion(version) < float64(p.Version()) {
		migrated, ok, err := p.Migrate(raw)
		switch {
		case err != nil:
			res.MigrateErr = err
			res.Data = p.DefaultData()
			return res
		case ok:
			data = migrated
			res.Migrated = true
		}
	}

	v, errs := p.Decode(data)
	if len(errs) > 0 {
		res.Errors = errs
		res.Data = p.DefaultData()
		return res
	}
	res.Data = v
	res.Valid = true
	return res
}
