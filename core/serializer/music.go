package serializer

import "albumapi/model"

const maxTextLength = 100

// TrackSchema exposes id, order, title, duration and album. The album
// reference is always assigned by the server.
func TrackSchema() *Schema {
	return &Schema{
		Name: "track",
		New:  func() model.Record { return &model.Track{} },
		Fields: []Field{
			{Name: "id", Kind: Integer, ReadOnly: true},
			{Name: "order", Kind: Integer, Required: true},
			{Name: "title", Kind: String, Required: true, MaxLength: maxTextLength},
			{Name: "duration", Kind: Number, Required: true},
			{Name: "album", Column: "album_id", Kind: Integer, ReadOnly: true},
		},
	}
}

// AlbumSchema exposes id, album_name, artist and the nested tracks list.
func AlbumSchema() *Schema {
	return &Schema{
		Name: "album",
		New:  func() model.Record { return &model.Album{} },
		Fields: []Field{
			{Name: "id", Kind: Integer, ReadOnly: true},
			{Name: "album_name", Kind: String, Required: true, MaxLength: maxTextLength},
			{Name: "artist", Kind: String, Required: true, MaxLength: maxTextLength},
			{Name: "tracks", Kind: Nested, Many: true, Required: true, Schema: TrackSchema()},
		},
	}
}
