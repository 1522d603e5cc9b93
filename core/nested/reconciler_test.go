package nested

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"albumapi/core/serializer"
	"albumapi/internal/testdb"
	"albumapi/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func payload(t *testing.T, s string) serializer.Payload {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var p serializer.Payload
	require.NoError(t, dec.Decode(&p))
	return p
}

func newAlbumReconciler(t *testing.T) (*Reconciler, *gorm.DB) {
	t.Helper()
	gdb := testdb.New(t)
	r, err := NewAlbumReconciler(gdb)
	require.NoError(t, err)
	return r, gdb
}

func getTrack(t *testing.T, gdb *gorm.DB, id int64) model.Track {
	t.Helper()
	var track model.Track
	require.NoError(t, gdb.First(&track, id).Error)
	return track
}

func TestCreateAlbumWithTracks(t *testing.T) {
	r, gdb := newAlbumReconciler(t)

	rec, err := r.Create(context.Background(), payload(t, `{
		"album_name": "ad", "artist": "asded",
		"tracks": [
			{"title": "Despo", "order": 1, "duration": 4},
			{"title": "Deo1", "order": 3, "duration": 4}
		]}`))
	require.NoError(t, err)

	album := rec.(*model.Album)
	assert.NotZero(t, album.ID)
	assert.Equal(t, "ad", album.AlbumName)
	assert.Equal(t, "asded", album.Artist)
	require.Len(t, album.Tracks, 2)

	var stored []model.Track
	require.NoError(t, gdb.Where("album_id = ?", album.ID).Find(&stored).Error)
	require.Len(t, stored, 2)

	byTitle := map[string]model.Track{}
	for _, tr := range stored {
		assert.Equal(t, album.ID, tr.AlbumID)
		byTitle[tr.Title] = tr
	}
	assert.Equal(t, int64(1), byTitle["Despo"].Order)
	assert.Equal(t, int64(3), byTitle["Deo1"].Order)
	assert.Equal(t, 4.0, byTitle["Deo1"].Duration)
}

func TestCreateIgnoresClientAlbumReference(t *testing.T) {
	r, gdb := newAlbumReconciler(t)
	other := testdb.SeedAnti(t, gdb)

	rec, err := r.Create(context.Background(), payload(t, `{
		"album_name": "x", "artist": "y",
		"tracks": [{"title": "t", "order": 1, "duration": 1, "album": `+jsonInt(other.ID)+`}]}`))
	require.NoError(t, err)

	album := rec.(*model.Album)
	require.Len(t, album.Tracks, 1)
	assert.Equal(t, album.ID, album.Tracks[0].AlbumID)
}

func TestCreateRejectsInvalidTrackWithoutWriting(t *testing.T) {
	r, gdb := newAlbumReconciler(t)

	_, err := r.Create(context.Background(), payload(t, `{
		"album_name": "What's Going On", "artist": "Marvin Gaye One",
		"tracks": [
			{"order": 1, "album": 2},
			{"order": 2, "title": "What's happening brother", "duration": 7}
		]}`))

	var verr *serializer.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "tracks[0].title")
	assert.Equal(t, int64(0), testdb.Count(t, gdb, &model.Album{}))
	assert.Equal(t, int64(0), testdb.Count(t, gdb, &model.Track{}))
}

func TestCreateRollsBackWhenChildInsertFails(t *testing.T) {
	r, gdb := newAlbumReconciler(t)

	// a constraint failure on the child insert must undo the album insert
	require.NoError(t, gdb.Exec(`CREATE TRIGGER reject_track BEFORE INSERT ON tracks
		WHEN NEW.title = 'boom' BEGIN SELECT RAISE(ABORT, 'rejected'); END`).Error)

	_, err := r.Create(context.Background(), payload(t, `{
		"album_name": "a", "artist": "b",
		"tracks": [{"title": "fine", "order": 1, "duration": 1}, {"title": "boom", "order": 2, "duration": 1}]}`))
	require.Error(t, err)

	assert.Equal(t, int64(0), testdb.Count(t, gdb, &model.Album{}))
	assert.Equal(t, int64(0), testdb.Count(t, gdb, &model.Track{}))
}

func TestPartialUpdateTrackDuration(t *testing.T) {
	r, gdb := newAlbumReconciler(t)
	anti := testdb.SeedAnti(t, gdb)
	track1, track2 := anti.Tracks[0], anti.Tracks[1]

	rec, err := r.Update(context.Background(), anti.ID, payload(t, `{
		"album_name": "Updated Name",
		"tracks": [{"id": `+jsonInt(track1.ID)+`, "duration": 12}]}`), true)
	require.NoError(t, err)

	album := rec.(*model.Album)
	assert.Equal(t, "Updated Name", album.AlbumName)
	assert.Equal(t, "Rihanna", album.Artist)
	require.Len(t, album.Tracks, 2)

	got1 := getTrack(t, gdb, track1.ID)
	assert.Equal(t, 12.0, got1.Duration)
	assert.Equal(t, "Desperado", got1.Title)
	assert.Equal(t, int64(1), got1.Order)
	assert.Equal(t, anti.ID, got1.AlbumID)

	assert.Equal(t, track2, getTrack(t, gdb, track2.ID))
}

func TestFullUpdateWithIDs(t *testing.T) {
	r, gdb := newAlbumReconciler(t)
	anti := testdb.SeedAnti(t, gdb)
	track1, track2 := anti.Tracks[0], anti.Tracks[1]

	_, err := r.Update(context.Background(), anti.ID, payload(t, `{
		"album_name": "Anti", "artist": "Rihanna",
		"tracks": [
			{"id": `+jsonInt(track1.ID)+`, "title": "Despo", "order": 1, "duration": 4},
			{"id": `+jsonInt(track2.ID)+`, "title": "Love on the brain", "order": 2, "duration": 10}
		]}`), false)
	require.NoError(t, err)

	assert.Equal(t, "Despo", getTrack(t, gdb, track1.ID).Title)
	assert.Equal(t, 10.0, getTrack(t, gdb, track2.ID).Duration)
	assert.Equal(t, int64(2), testdb.Count(t, gdb, &model.Track{}))
}

func TestFullUpdateRequiresAllFields(t *testing.T) {
	r, gdb := newAlbumReconciler(t)
	anti := testdb.SeedAnti(t, gdb)

	_, err := r.Update(context.Background(), anti.ID, payload(t, `{"album_name": "Only name"}`), false)

	var verr *serializer.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "artist")
	assert.Contains(t, verr.Fields, "tracks")
}

func TestUpdateCreatesTracksWithoutID(t *testing.T) {
	r, gdb := newAlbumReconciler(t)
	anti := testdb.SeedAnti(t, gdb)

	rec, err := r.Update(context.Background(), anti.ID, payload(t, `{
		"tracks": [{"title": "Kiss it better", "order": 3, "duration": 4}]}`), true)
	require.NoError(t, err)

	album := rec.(*model.Album)
	require.Len(t, album.Tracks, 3)
	last := album.Tracks[2]
	assert.Equal(t, "Kiss it better", last.Title)
	assert.Equal(t, anti.ID, last.AlbumID)
}

func TestUpdateNewTrackMustBeComplete(t *testing.T) {
	r, gdb := newAlbumReconciler(t)
	anti := testdb.SeedAnti(t, gdb)

	_, err := r.Update(context.Background(), anti.ID, payload(t, `{"tracks": [{"order": 3}]}`), true)

	var verr *serializer.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"This field is required."}, verr.Fields["tracks[0].title"])
	assert.Equal(t, int64(2), testdb.Count(t, gdb, &model.Track{}))
}

func TestUpdateUnknownTrackRejectsWholePatch(t *testing.T) {
	r, gdb := newAlbumReconciler(t)
	anti := testdb.SeedAnti(t, gdb)
	track1 := anti.Tracks[0]

	_, err := r.Update(context.Background(), anti.ID, payload(t, `{
		"album_name": "Renamed",
		"tracks": [
			{"id": `+jsonInt(track1.ID)+`, "duration": 99},
			{"id": 4242, "duration": 1}
		]}`), true)

	var nferr *NotFoundError
	require.ErrorAs(t, err, &nferr)
	assert.Equal(t, int64(4242), nferr.ID)
	assert.Equal(t, "No object found to update for id=4242", nferr.Error())

	var album model.Album
	require.NoError(t, gdb.First(&album, anti.ID).Error)
	assert.Equal(t, "Anti", album.AlbumName)
	assert.Equal(t, 4.0, getTrack(t, gdb, track1.ID).Duration)
}

func TestUpdateTrackOfAnotherAlbumIsNotFound(t *testing.T) {
	r, gdb := newAlbumReconciler(t)
	anti := testdb.SeedAnti(t, gdb)
	other := testdb.SeedAnti(t, gdb)

	_, err := r.Update(context.Background(), anti.ID, payload(t, `{
		"tracks": [{"id": `+jsonInt(other.Tracks[0].ID)+`, "title": "stolen"}]}`), true)

	var nferr *NotFoundError
	require.ErrorAs(t, err, &nferr)
	assert.Equal(t, "Desperado", getTrack(t, gdb, other.Tracks[0].ID).Title)
}

func TestUpdateInvalidTrackFieldsReportPath(t *testing.T) {
	r, gdb := newAlbumReconciler(t)
	anti := testdb.SeedAnti(t, gdb)

	_, err := r.Update(context.Background(), anti.ID, payload(t, `{
		"tracks": [{"id": `+jsonInt(anti.Tracks[1].ID)+`, "order": "second"}]}`), true)

	var verr *serializer.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"A valid integer is required."}, verr.Fields["tracks[0].order"])
}

func TestUpdateNeverMovesTrackToAnotherAlbum(t *testing.T) {
	r, gdb := newAlbumReconciler(t)
	anti := testdb.SeedAnti(t, gdb)
	other := testdb.SeedAnti(t, gdb)

	_, err := r.Update(context.Background(), anti.ID, payload(t, `{
		"tracks": [{"id": `+jsonInt(anti.Tracks[0].ID)+`, "album": `+jsonInt(other.ID)+`}]}`), true)
	require.NoError(t, err)

	assert.Equal(t, anti.ID, getTrack(t, gdb, anti.Tracks[0].ID).AlbumID)
}

func TestUpdateMissingAlbum(t *testing.T) {
	r, _ := newAlbumReconciler(t)

	_, err := r.Update(context.Background(), 99, payload(t, `{"album_name": "x"}`), true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateEmptyTracksLeavesChildrenAlone(t *testing.T) {
	r, gdb := newAlbumReconciler(t)
	anti := testdb.SeedAnti(t, gdb)

	rec, err := r.Update(context.Background(), anti.ID, payload(t, `{"artist": "Robyn Fenty", "tracks": []}`), true)
	require.NoError(t, err)

	album := rec.(*model.Album)
	assert.Equal(t, "Robyn Fenty", album.Artist)
	assert.Len(t, album.Tracks, 2)
}

func TestNewRejectsBadConfig(t *testing.T) {
	gdb := testdb.New(t)

	_, err := New(gdb, Config{})
	assert.Error(t, err)

	_, err = New(gdb, Config{
		Parent:    serializer.AlbumSchema(),
		Relations: []Relation{{Field: "songs", ForeignKey: "album", Many: true, Child: serializer.TrackSchema()}},
	})
	assert.ErrorContains(t, err, `no nested field "songs"`)

	_, err = New(gdb, Config{
		Parent:    serializer.AlbumSchema(),
		Relations: []Relation{{Field: "tracks", ForeignKey: "record", Many: true, Child: serializer.TrackSchema()}},
	})
	assert.ErrorContains(t, err, `no field "record"`)

	_, err = New(gdb, Config{
		Parent:    serializer.AlbumSchema(),
		Relations: []Relation{{Field: "tracks", ForeignKey: "album", Many: false, Child: serializer.TrackSchema()}},
	})
	assert.ErrorContains(t, err, "cardinality")
}

// featuredSchema is an album with a single nested track instead of a list.
func featuredSchema() *serializer.Schema {
	return &serializer.Schema{
		Name: "album",
		New:  func() model.Record { return &model.Album{} },
		Fields: []serializer.Field{
			{Name: "id", Kind: serializer.Integer, ReadOnly: true},
			{Name: "album_name", Kind: serializer.String, Required: true, MaxLength: 100},
			{Name: "artist", Kind: serializer.String, Required: true, MaxLength: 100},
			{Name: "featured", Kind: serializer.Nested, Required: true, Schema: serializer.TrackSchema()},
		},
	}
}

func newFeaturedReconciler(t *testing.T) (*Reconciler, *gorm.DB) {
	t.Helper()
	gdb := testdb.New(t)
	r, err := New(gdb, Config{
		Parent: featuredSchema(),
		Relations: []Relation{{
			Field:       "featured",
			ForeignKey:  "album",
			Child:       serializer.TrackSchema(),
			Association: "Tracks",
			OrderBy:     []string{"order", "id"},
		}},
	})
	require.NoError(t, err)
	return r, gdb
}

func TestSingleNestedCreate(t *testing.T) {
	r, gdb := newFeaturedReconciler(t)

	rec, err := r.Create(context.Background(), payload(t, `{
		"album_name": "Anti", "artist": "Rihanna",
		"featured": {"title": "Work", "order": 4, "duration": 3.5, "album": 99}}`))
	require.NoError(t, err)

	album := rec.(*model.Album)
	require.Len(t, album.Tracks, 1)
	assert.Equal(t, "Work", album.Tracks[0].Title)
	assert.Equal(t, album.ID, album.Tracks[0].AlbumID)
	assert.Equal(t, int64(1), testdb.Count(t, gdb, &model.Track{}))
}

func TestSingleNestedUpdateByID(t *testing.T) {
	r, gdb := newFeaturedReconciler(t)
	anti := testdb.SeedAnti(t, gdb)
	track1, track2 := anti.Tracks[0], anti.Tracks[1]

	_, err := r.Update(context.Background(), anti.ID, payload(t, `{
		"featured": {"id": `+jsonInt(track1.ID)+`, "duration": 9}}`), true)
	require.NoError(t, err)

	got := getTrack(t, gdb, track1.ID)
	assert.Equal(t, 9.0, got.Duration)
	assert.Equal(t, "Desperado", got.Title)
	assert.Equal(t, track2, getTrack(t, gdb, track2.ID))
}

func TestSingleNestedUpdateWithoutIDCreates(t *testing.T) {
	r, gdb := newFeaturedReconciler(t)
	anti := testdb.SeedAnti(t, gdb)

	rec, err := r.Update(context.Background(), anti.ID, payload(t, `{
		"featured": {"title": "Needed me", "order": 3, "duration": 3}}`), true)
	require.NoError(t, err)

	album := rec.(*model.Album)
	require.Len(t, album.Tracks, 3)
	assert.Equal(t, "Needed me", album.Tracks[2].Title)
	assert.Equal(t, anti.ID, album.Tracks[2].AlbumID)
}

func TestSingleNestedUnknownID(t *testing.T) {
	r, gdb := newFeaturedReconciler(t)
	anti := testdb.SeedAnti(t, gdb)

	_, err := r.Update(context.Background(), anti.ID, payload(t, `{
		"album_name": "Renamed", "featured": {"id": 4242, "duration": 1}}`), true)

	var nferr *NotFoundError
	require.ErrorAs(t, err, &nferr)
	assert.Equal(t, "featured", nferr.Field)

	var album model.Album
	require.NoError(t, gdb.First(&album, anti.ID).Error)
	assert.Equal(t, "Anti", album.AlbumName)
}

func TestSingleNestedValidation(t *testing.T) {
	r, gdb := newFeaturedReconciler(t)

	_, err := r.Create(context.Background(), payload(t, `{
		"album_name": "a", "artist": "b", "featured": "Work"}`))
	var verr *serializer.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"Invalid data. Expected a dictionary, but got string."}, verr.Fields["featured"])

	_, err = r.Create(context.Background(), payload(t, `{
		"album_name": "a", "artist": "b", "featured": [{"title": "Work"}]}`))
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"Invalid data. Expected a dictionary, but got list."}, verr.Fields["featured"])

	_, err = r.Create(context.Background(), payload(t, `{
		"album_name": "a", "artist": "b", "featured": {"order": 1, "duration": 2}}`))
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"This field is required."}, verr.Fields["featured.title"])

	anti := testdb.SeedAnti(t, gdb)
	_, err = r.Update(context.Background(), anti.ID, payload(t, `{"featured": {"order": 5}}`), true)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"This field is required."}, verr.Fields["featured.title"])

	assert.Equal(t, int64(1), testdb.Count(t, gdb, &model.Album{}))
	assert.Equal(t, int64(2), testdb.Count(t, gdb, &model.Track{}))
}

func TestSplitPayload(t *testing.T) {
	r, _ := newAlbumReconciler(t)

	parent, groups := r.splitPayload(serializer.Payload{
		"album_name": "a",
		"tracks":     []interface{}{map[string]interface{}{"title": "x"}, "junk"},
	})
	assert.Equal(t, serializer.Payload{"album_name": "a"}, parent)
	require.Len(t, groups, 1)
	assert.Equal(t, "tracks", groups[0].rel.Field)
	assert.Equal(t, []serializer.Payload{{"title": "x"}}, groups[0].entries)
}

func jsonInt(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
