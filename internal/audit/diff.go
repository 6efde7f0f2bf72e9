package audit

// The diff engine is pure: no I/O, inputs are never mutated, and output order
// always follows the audited-field declaration order passed by the caller.

// CreateChanges emits one change per field present on the created entity,
// each with a nil FromValue.
func CreateChanges(fields []string, after Snapshot) []FieldChange {
	changes := make([]FieldChange, 0, len(fields))
	for _, f := range fields {
		v, ok := after[f]
		if !ok {
			continue
		}
		changes = append(changes, FieldChange{FieldName: f, FromValue: nil, ToValue: v})
	}
	return changes
}

// UpdateChanges computes the diff for the in-memory mutate-then-save pathway.
// Only fields flagged in modified are emitted; whether an assignment counts
// as a modification is decided at assignment time by the entity's edit
// tracker, not by re-comparing values here.
func UpdateChanges(fields []string, modified map[string]bool, before, after Snapshot) []FieldChange {
	var changes []FieldChange
	for _, f := range fields {
		if !modified[f] {
			continue
		}
		changes = append(changes, FieldChange{FieldName: f, FromValue: before[f], ToValue: after[f]})
	}
	return changes
}

// ResolvedUpdateChanges computes the diff for the atomic conditional update
// pathway. The resolved new value for a field is the patch value if the patch
// sets it, otherwise the field's value on the post-update row. A change is
// emitted when the resolved value is present and differs from the
// before-snapshot value.
//
// A field that was absent on the snapshot always differs, even from an
// explicit nil. That looseness (absent vs null never compare equal) is
// intentional and preserved; downstream consumers of the log may depend on
// it.
func ResolvedUpdateChanges(fields []string, before, patch, post Snapshot) []FieldChange {
	var changes []FieldChange
	for _, f := range fields {
		resolved, ok := patch[f]
		if !ok {
			resolved, ok = post[f]
		}
		if !ok {
			continue // no resolved value, never emitted
		}

		old, hadOld := before[f]
		if hadOld && equalValue(old, resolved) {
			continue
		}

		changes = append(changes, FieldChange{FieldName: f, FromValue: old, ToValue: resolved})
	}
	return changes
}

// DeleteChanges returns the fixed sentinel recorded for a deletion. The row
// is gone by the time the record is written, so no field-level diff exists.
func DeleteChanges() []FieldChange {
	return []FieldChange{{FieldName: "status", FromValue: "active", ToValue: "deleted"}}
}

// equalValue compares by value. Snapshot builders only produce comparable
// types (string, bool, uuid.UUID, nil), so == is safe here.
func equalValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a == b
}
