package nested

import (
	"albumapi/core/serializer"

	"gorm.io/gorm"
)

// NewAlbumReconciler writes albums together with their tracks. Each track
// entry gets its album reference from the album being written.
func NewAlbumReconciler(db *gorm.DB) (*Reconciler, error) {
	return New(db, Config{
		Parent: serializer.AlbumSchema(),
		Relations: []Relation{
			{
				Field:       "tracks",
				ForeignKey:  "album",
				Many:        true,
				Child:       serializer.TrackSchema(),
				Association: "Tracks",
				OrderBy:     []string{"order", "id"},
			},
		},
	})
}
