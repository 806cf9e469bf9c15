package repo

import (
	"context"

	"gorm.io/gorm"
)

// UserIDCounter is the sequence backing account ids.
const UserIDCounter = "user_id"

// NextID bumps the named counter and returns the new value. The upsert is a
// single statement, so the read and the write cannot interleave with another
// caller: the database serializes the row update and every caller sees a
// distinct value. A counter that does not exist yet starts at 0 and the
// first allocation returns 1.
func (r *GormRepo) NextID(ctx context.Context, name string) (uint64, error) {
	return nextID(r.DB.WithContext(ctx), name)
}

func nextID(db *gorm.DB, name string) (uint64, error) {
	var value uint64
	err := db.Raw(`
		INSERT INTO sequence_counters (name, value) VALUES (?, 1)
		ON CONFLICT (name) DO UPDATE SET value = sequence_counters.value + 1
		RETURNING value`, name).Scan(&value).Error
	if err != nil {
		return 0, err
	}
	return value, nil
}
