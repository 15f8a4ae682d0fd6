package service

import "gorm.io/gorm"

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

type PageQuery struct {
	Page  int
	Limit int
}

func (p PageQuery) Normalize() PageQuery {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

// Paginate is a gorm scope applying the normalized offset/limit.
func (p PageQuery) Paginate(db *gorm.DB) *gorm.DB {
	p = p.Normalize()
	return db.Offset((p.Page - 1) * p.Limit).Limit(p.Limit)
}
