package domain

import "time"

// ShareGrant records that a grantee may open a document at a given role.
// One grant per (document, grantee); re-sharing upgrades or downgrades the
// existing grant in place.
type ShareGrant struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	DocumentID uint      `gorm:"uniqueIndex:idx_doc_grantee;not null" json:"documentId"`
	GranteeID  uint      `gorm:"uniqueIndex:idx_doc_grantee;not null" json:"granteeId"`
	Role       Role      `gorm:"size:20;not null" json:"role"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}
