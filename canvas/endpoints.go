package canvas

import (
	"fmt"
	"net/url"

	"github.com/google/go-querystring/query"
)

// coursesEndpoint returns the API endpoint to list the current user's courses:
// https://canvas.instructure.com/doc/api/courses.html#method.courses.index
func (api *API) coursesEndpoint(opts ListCoursesQuery) (*url.URL, error) {
	return api.endpointWithQuery("/api/v1/courses", opts)
}

// courseFoldersEndpoint returns the API endpoint to list every folder in a course, nested ones
// included:
// https://canvas.instructure.com/doc/api/files.html#method.folders.list_all_folders
func (api *API) courseFoldersEndpoint(opts ListFoldersQuery) (*url.URL, error) {
	if opts.CourseID < 1 {
		return nil, fmt.Errorf("canvas: please provide course ID to list folders")
	}

	return api.endpointWithQuery(fmt.Sprintf("/api/v1/courses/%d/folders", opts.CourseID), opts)
}

// folderFilesEndpoint returns the API endpoint to list the files directly inside a folder:
// https://canvas.instructure.com/doc/api/files.html#method.files.api_index
func (api *API) folderFilesEndpoint(opts ListFilesQuery) (*url.URL, error) {
	if opts.FolderID < 1 {
		return nil, fmt.Errorf("canvas: please provide folder ID to list files")
	}

	return api.endpointWithQuery(fmt.Sprintf("/api/v1/folders/%d/files", opts.FolderID), opts)
}

func (api *API) endpointWithQuery(endpoint string, opts any) (*url.URL, error) {
	ep, err := api.resolveEndpoint(endpoint)
	if err != nil {
		return nil, fmt.Errorf("canvas: couldn't resolve endpoint: %w", err)
	}

	v, err := query.Values(opts)
	if err != nil {
		return nil, fmt.Errorf("canvas: couldn't encode query params: %w", err)
	}
	ep.RawQuery = v.Encode()

	return ep, nil
}

// Do a bit of error checking on endpoint format, and return it relative to the base URI.
func (api *API) resolveEndpoint(endpoint string) (*url.URL, error) {
	ref, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("canvas: failed to parse endpoint ref: %w", err)
	}

	return api.baseURI.ResolveReference(ref), nil
}
