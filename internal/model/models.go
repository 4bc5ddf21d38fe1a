package model

import (
	"time"
)

// Category 表示作品分类（如电影 / 书籍 / 音乐）。
type Category struct {
	ID   uint   `gorm:"primaryKey"`                   // 分类 ID
	Name string `gorm:"type:varchar(256);not null"`   // 分类名称
	Slug string `gorm:"type:varchar(50);uniqueIndex"` // URL 标识（唯一）
}

// Genre 表示作品流派（如科幻 / 摇滚）。
type Genre struct {
	ID   uint   `gorm:"primaryKey"`                   // 流派 ID
	Name string `gorm:"type:varchar(256);not null"`   // 流派名称
	Slug string `gorm:"type:varchar(50);uniqueIndex"` // URL 标识（唯一）
}

// Title 表示可被评价的作品。
//
// 作品属于一个分类，可关联多个流派（通过 title_genres 表）。
// 平均评分不落库，读取时由 reviews 聚合得出。
type Title struct {
	ID          uint   `gorm:"primaryKey"`                 // 作品 ID
	Name        string `gorm:"type:varchar(256);not null"` // 作品名称
	Year        int    `gorm:"not null"`                   // 发布年份
	Description string `gorm:"type:text"`                  // 描述

	CategoryID uint     `gorm:"not null"`                  // 所属分类 ID
	Category   Category `gorm:"foreignKey:CategoryID"`     // 所属分类
	Genres     []Genre  `gorm:"many2many:title_genres"`    // 关联流派

	Reviews []Review `gorm:"foreignKey:TitleID;constraint:OnDelete:CASCADE"`
}

// Review 表示用户对作品的评价。
//
// 同一作者对同一作品至多一条评价，由 (title_id, author_id)
// 复合唯一索引兜底，应用层查重只是提前拒绝。
type Review struct {
	ID        uint      `gorm:"primaryKey"`                                  // 评价 ID
	TitleID   uint      `gorm:"not null;uniqueIndex:idx_reviews_title_author"` // 作品 ID
	AuthorID  uint      `gorm:"not null;uniqueIndex:idx_reviews_title_author"` // 作者 ID
	Author    User      `gorm:"foreignKey:AuthorID"`                         // 作者
	Text      string    `gorm:"type:text;not null"`                          // 评价正文
	Score     int       `gorm:"not null"`                                    // 评分 [1,10]
	CreatedAt time.Time // 发布时间

	Comments []Comment `gorm:"foreignKey:ReviewID;constraint:OnDelete:CASCADE"`
}

// Comment 表示评价下的留言。
type Comment struct {
	ID        uint      `gorm:"primaryKey"`          // 留言 ID
	ReviewID  uint      `gorm:"not null"`            // 所属评价 ID
	AuthorID  uint      `gorm:"not null"`            // 作者 ID
	Author    User      `gorm:"foreignKey:AuthorID"` // 作者
	Text      string    `gorm:"type:text;not null"`  // 留言正文
	CreatedAt time.Time // 发布时间
}
