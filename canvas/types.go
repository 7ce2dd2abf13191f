package canvas

import "time"

// See https://canvas.instructure.com/doc/api/courses.html#Course.  Courses whose dates restrict
// access come back with little more than an ID, and no name.
type Course struct {
	ID                     int64  `json:"id"`
	Name                   string `json:"name,omitempty"`
	CourseCode             string `json:"course_code,omitempty"`
	WorkflowState          string `json:"workflow_state,omitempty"`
	AccessRestrictedByDate bool   `json:"access_restricted_by_date,omitempty"`
}

// See https://canvas.instructure.com/doc/api/files.html#Folder.  FullName is the path from the
// course's root folder, which is itself named e.g. "course files".
type Folder struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	FullName       string `json:"full_name"`
	ParentFolderID *int64 `json:"parent_folder_id,omitempty"`
	FilesCount     int    `json:"files_count"`
	FoldersCount   int    `json:"folders_count"`
	Hidden         bool   `json:"hidden,omitempty"`
	LockedForUser  bool   `json:"locked_for_user,omitempty"`
}

// See https://canvas.instructure.com/doc/api/files.html#File.  URL is a pre-authenticated download
// link; it's blank when the file is locked for the current user.
type File struct {
	ID            int64      `json:"id"`
	DisplayName   string     `json:"display_name"`
	Filename      string     `json:"filename,omitempty"`
	ContentType   string     `json:"content-type,omitempty"`
	URL           string     `json:"url"`
	Size          int64      `json:"size,omitempty"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
	Locked        bool       `json:"locked,omitempty"`
	LockedForUser bool       `json:"locked_for_user,omitempty"`
}
