package repository

import (
	"time"

	"github.com/Freeeeeet/creator_pipeline/internal/model"
	"github.com/jackc/pgx/v5/pgtype"
)

const microsPerMinute = int64(time.Minute / time.Microsecond)

// toPGTime переводит время суток в postgres TIME
func toPGTime(t *model.TimeOfDay) pgtype.Time {
	if t == nil {
		return pgtype.Time{}
	}
	return pgtype.Time{Microseconds: int64(*t) * microsPerMinute, Valid: true}
}

// fromPGTime переводит postgres TIME во время суток, nil для NULL
func fromPGTime(t pgtype.Time) *model.TimeOfDay {
	if !t.Valid {
		return nil
	}
	v := model.TimeOfDay(t.Microseconds / microsPerMinute)
	return &v
}

// toPGDate переводит дату в postgres DATE
func toPGDate(d *time.Time) pgtype.Date {
	if d == nil {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: model.DateOnly(*d), Valid: true}
}

// fromPGDate переводит postgres DATE в дату, nil для NULL
func fromPGDate(d pgtype.Date) *time.Time {
	if !d.Valid {
		return nil
	}
	v := model.DateOnly(d.Time)
	return &v
}
