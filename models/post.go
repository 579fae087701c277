package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Post is the only document stored in the posts collection.
type Post struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Title        string             `bson:"title" json:"title"`
	Message      string             `bson:"message" json:"message"`
	Name         string             `bson:"name" json:"name"`
	Creator      string             `bson:"creator" json:"creator"`
	Tags         []string           `bson:"tags" json:"tags"`
	SelectedFile string             `bson:"selectedFile" json:"selectedFile"`
	Likes        []string           `bson:"likes" json:"likes"`
	Comments     []string           `bson:"comments" json:"comments"`
	CreatedAt    string             `bson:"createdAt" json:"createdAt"`
}

// Normalize replaces nil slices so the JSON never carries null arrays.
func (p *Post) Normalize() {
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if p.Likes == nil {
		p.Likes = []string{}
	}
	if p.Comments == nil {
		p.Comments = []string{}
	}
}

// Clone returns a deep copy.
func (p Post) Clone() Post {
	p.Tags = append([]string{}, p.Tags...)
	p.Likes = append([]string{}, p.Likes...)
	p.Comments = append([]string{}, p.Comments...)
	return p
}

// LikedBy reports whether userID is in the likes list.
func (p *Post) LikedBy(userID string) bool {
	for _, id := range p.Likes {
		if id == userID {
			return true
		}
	}
	return false
}
