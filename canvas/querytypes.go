package canvas

// ListCoursesQuery defines the query parameters for:
// https://canvas.instructure.com/doc/api/courses.html#method.courses.index
type ListCoursesQuery struct {
	// Filter the results to courses the user is enrolled in with this state: active,
	// invited_or_pending, completed.
	EnrollmentState string   `url:"enrollment_state,omitempty"`
	Include         []string `url:"include[],omitempty"` // extra fields, e.g. "term"

	// 'Page' is used for pagination; this opaque value comes back in the rel="next" URL of the
	// 'Link' response header.
	Page    string `url:"page,omitempty"`
	PerPage int    `url:"per_page,omitempty"` // page limit; Canvas defaults to 10
}

// ListFoldersQuery defines the query parameters for:
// https://canvas.instructure.com/doc/api/files.html#method.folders.list_all_folders
type ListFoldersQuery struct {
	CourseID int64 `url:"-"` // required

	Page    string `url:"page,omitempty"`
	PerPage int    `url:"per_page,omitempty"`
}

// ListFilesQuery defines the query parameters for:
// https://canvas.instructure.com/doc/api/files.html#method.files.api_index
type ListFilesQuery struct {
	FolderID int64 `url:"-"` // required

	Sort  string `url:"sort,omitempty"`  // name, size, created_at, updated_at, content_type, user
	Order string `url:"order,omitempty"` // asc, desc

	Page    string `url:"page,omitempty"`
	PerPage int    `url:"per_page,omitempty"`
}

// pageable is implemented by the listing queries so one pagination loop can serve all of them.
type pageable interface {
	setPage(page string)
}

func (q *ListCoursesQuery) setPage(page string) { q.Page = page }
func (q *ListFoldersQuery) setPage(page string) { q.Page = page }
func (q *ListFilesQuery) setPage(page string)   { q.Page = page }
