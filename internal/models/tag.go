package models

// Tag is a category shared by items and user interests.
type Tag struct {
	ID   int    `bson:"_id" json:"id"`
	Name string `bson:"name" json:"name"`
}
