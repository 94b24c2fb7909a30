package remote

import (
	"encoding/json"
	"time"

	"notes-sync-client/internal/domain"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Wire field names used by the remote service.
const (
	fieldID         = "id"
	fieldTag        = "tag"
	fieldTitle      = "title"
	fieldContent    = "content"
	fieldFolderID   = "folder_id"
	fieldStarred    = "starred"
	fieldTags       = "tags"
	fieldAssets     = "assets"
	fieldName       = "name"
	fieldCreateDate = "create_date"
	fieldModifyDate = "modify_date"
	fieldPinned     = "pinned"
	fieldCount      = "count"
)

var noteFields = map[string]bool{
	fieldID: true, fieldTag: true, fieldTitle: true, fieldContent: true, fieldFolderID: true,
	fieldStarred: true, fieldTags: true, fieldAssets: true, fieldCreateDate: true, fieldModifyDate: true,
}

var folderFields = map[string]bool{
	fieldID: true, fieldTag: true, fieldName: true, fieldCreateDate: true, fieldModifyDate: true,
	fieldPinned: true, fieldCount: true,
}

func decodeNote(raw []byte) (*domain.Note, error) {
	if !gjson.ValidBytes(raw) {
		return nil, malformed("note is not valid json")
	}
	r := gjson.ParseBytes(raw)
	if !r.IsObject() {
		return nil, malformed("note is not an object")
	}

	id := r.Get(fieldID).String()
	if id == "" {
		return nil, malformed("note without id")
	}

	created := millis(r.Get(fieldCreateDate))
	n := &domain.Note{
		ID:        id,
		Title:     r.Get(fieldTitle).String(),
		Content:   r.Get(fieldContent).String(),
		FolderID:  r.Get(fieldFolderID).String(),
		IsStarred: r.Get(fieldStarred).Bool(),
		CreatedAt: created,
		UpdatedAt: millis(r.Get(fieldModifyDate)),
		Tags:      stringSlice(r.Get(fieldTags)),
		AssetIDs:  stringSlice(r.Get(fieldAssets)),
		Mirror: domain.RemoteEntityMirror{
			RevisionTag:     r.Get(fieldTag).String(),
			CreatedAtRemote: created,
			ServerFields:    extraFields(r, noteFields),
		},
	}
	if n.FolderID == "" {
		n.FolderID = domain.FolderIDAll
	}
	return n, nil
}

func decodeFolder(raw []byte) (*domain.Folder, error) {
	if !gjson.ValidBytes(raw) {
		return nil, malformed("folder is not valid json")
	}
	r := gjson.ParseBytes(raw)
	if !r.IsObject() {
		return nil, malformed("folder is not an object")
	}

	id := r.Get(fieldID).String()
	if id == "" {
		return nil, malformed("folder without id")
	}

	created := millis(r.Get(fieldCreateDate))
	return &domain.Folder{
		ID:        id,
		Name:      r.Get(fieldName).String(),
		Count:     int(r.Get(fieldCount).Int()),
		IsPinned:  r.Get(fieldPinned).Bool(),
		CreatedAt: created,
		UpdatedAt: millis(r.Get(fieldModifyDate)),
		Mirror: domain.RemoteEntityMirror{
			RevisionTag:     r.Get(fieldTag).String(),
			CreatedAtRemote: created,
			ServerFields:    extraFields(r, folderFields),
		},
	}, nil
}

type listing struct {
	notes     []*domain.Note
	folders   []*domain.Folder
	malformed int
}

// decodeListing decodes the notes and folders arrays of a page body. Entries that fail
// to decode are counted and dropped so one bad entity does not sink the page.
func decodeListing(r gjson.Result) listing {
	var l listing
	for _, item := range r.Get("notes").Array() {
		n, err := decodeNote([]byte(item.Raw))
		if err != nil {
			l.malformed++
			continue
		}
		l.notes = append(l.notes, n)
	}
	for _, item := range r.Get("folders").Array() {
		f, err := decodeFolder([]byte(item.Raw))
		if err != nil {
			l.malformed++
			continue
		}
		l.folders = append(l.folders, f)
	}
	return l
}

func decodePage(body []byte) (*Page, error) {
	if !gjson.ValidBytes(body) {
		return nil, malformed("page is not valid json")
	}
	r := gjson.ParseBytes(body)
	l := decodeListing(r)
	return &Page{
		Notes:      l.notes,
		Folders:    l.folders,
		NextCursor: r.Get("next_cursor").String(),
		SyncTag:    r.Get("sync_tag").String(),
		Malformed:  l.malformed,
	}, nil
}

func decodeChanges(body []byte) (*ChangePage, error) {
	if !gjson.ValidBytes(body) {
		return nil, malformed("change feed is not valid json")
	}
	r := gjson.ParseBytes(body)
	syncTag := r.Get("sync_tag").String()
	if syncTag == "" {
		return nil, malformed("change feed without sync_tag")
	}
	l := decodeListing(r)
	return &ChangePage{
		Notes:            l.notes,
		Folders:          l.folders,
		DeletedNoteIDs:   stringSlice(r.Get("deleted_note_ids")),
		DeletedFolderIDs: stringSlice(r.Get("deleted_folder_ids")),
		SyncTag:          syncTag,
		Malformed:        l.malformed,
	}, nil
}

func decodeCreated(body []byte) (*CreateResult, error) {
	r := gjson.ParseBytes(body)
	id := r.Get(fieldID).String()
	if !gjson.ValidBytes(body) || id == "" {
		return nil, malformed("create response without id")
	}
	return &CreateResult{ServerID: id, Tag: r.Get(fieldTag).String()}, nil
}

func decodeTag(body []byte) (string, error) {
	tag := gjson.GetBytes(body, fieldTag)
	if !gjson.ValidBytes(body) || !tag.Exists() {
		return "", malformed("response without tag")
	}
	return tag.String(), nil
}

// encodeNote builds the request body for a note. Server fields the client does not model
// are written back first so the remote sees them unchanged.
func encodeNote(n *domain.Note, tag string) ([]byte, error) {
	body, err := baseBody(n.Mirror.ServerFields)
	if err != nil {
		return nil, err
	}

	tags := n.Tags
	if tags == nil {
		tags = []string{}
	}
	sets := []field{
		{fieldTitle, n.Title},
		{fieldContent, n.Content},
		{fieldFolderID, n.FolderID},
		{fieldStarred, n.IsStarred},
		{fieldTags, tags},
		{fieldModifyDate, n.UpdatedAt.UnixMilli()},
	}
	if tag != "" {
		sets = append(sets, field{fieldTag, tag})
	}
	if len(n.AssetIDs) > 0 {
		sets = append(sets, field{fieldAssets, n.AssetIDs})
	}

	for _, s := range sets {
		if body, err = sjson.SetBytes(body, s.path, s.value); err != nil {
			return nil, err
		}
	}
	return body, nil
}

type field struct {
	path  string
	value any
}

func encodeFolder(f *domain.Folder, tag string) ([]byte, error) {
	body, err := baseBody(f.Mirror.ServerFields)
	if err != nil {
		return nil, err
	}
	if body, err = sjson.SetBytes(body, fieldName, f.Name); err != nil {
		return nil, err
	}
	if tag != "" {
		if body, err = sjson.SetBytes(body, fieldTag, tag); err != nil {
			return nil, err
		}
	}
	return body, nil
}

func baseBody(extra map[string]any) ([]byte, error) {
	if len(extra) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(extra)
}

func extraFields(r gjson.Result, known map[string]bool) map[string]any {
	var extra map[string]any
	r.ForEach(func(key, value gjson.Result) bool {
		if known[key.String()] {
			return true
		}
		if extra == nil {
			extra = make(map[string]any)
		}
		extra[key.String()] = value.Value()
		return true
	})
	return extra
}

func millis(r gjson.Result) time.Time {
	if !r.Exists() || r.Int() == 0 {
		return time.Time{}
	}
	return time.UnixMilli(r.Int()).UTC()
}

func stringSlice(r gjson.Result) []string {
	arr := r.Array()
	if len(arr) == 0 {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		out = append(out, v.String())
	}
	return out
}
