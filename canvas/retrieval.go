package canvas

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// ListCourses returns the user's courses for the configured enrollment state.  Courses without a
// name are dropped: we have no way to name a directory after them.
func (api *API) ListCourses(ctx context.Context) ([]Course, error) {
	query := ListCoursesQuery{
		EnrollmentState: api.enrollmentState,
		PerPage:         api.perPage,
	}

	all, err := collectPages[Course](ctx, api, &query, func() (*url.URL, error) {
		return api.coursesEndpoint(query)
	})
	if err != nil {
		return nil, fmt.Errorf("canvas: couldn't list courses: %w", err)
	}

	courses := []Course{}
	for _, c := range all {
		if strings.TrimSpace(c.Name) == "" {
			continue
		}
		courses = append(courses, c)
	}

	return courses, nil
}

// ListFolders returns every folder of a course that directly holds at least one file.
func (api *API) ListFolders(ctx context.Context, courseID int64) ([]Folder, error) {
	query := ListFoldersQuery{
		CourseID: courseID,
		PerPage:  api.perPage,
	}

	all, err := collectPages[Folder](ctx, api, &query, func() (*url.URL, error) {
		return api.courseFoldersEndpoint(query)
	})
	if err != nil {
		return nil, fmt.Errorf("canvas: couldn't list folders of course %d: %w", courseID, err)
	}

	folders := []Folder{}
	for _, f := range all {
		if f.FilesCount > 0 {
			folders = append(folders, f)
		}
	}

	return folders, nil
}

// ListFiles returns the files in a folder.  If Canvas answers with a status instead of a listing
// (folder deleted or locked since we listed it, access revoked, ...) the listing simply ends there:
// whatever earlier pages returned is kept, so a status on the first page is an empty folder.  Only
// transport problems are errors.
func (api *API) ListFiles(ctx context.Context, folderID int64) ([]File, error) {
	query := ListFilesQuery{
		FolderID: folderID,
		PerPage:  api.perPage,
	}

	files, err := collectPages[File](ctx, api, &query, func() (*url.URL, error) {
		return api.folderFilesEndpoint(query)
	})

	var statusErr *StatusError
	switch {
	case err == nil:
		return files, nil
	case errors.Is(err, errOutOfBand), errors.As(err, &statusErr):
		return files, nil
	default:
		return nil, fmt.Errorf("canvas: couldn't list files of folder %d: %w", folderID, err)
	}
}

// collectPages follows the rel="next" links of a listing until they run out.  endpoint is called
// once per page, after q has been moved on to the next page token.  On error the items of the
// pages before the failing one are returned alongside it.
func collectPages[T any](ctx context.Context, api *API, q pageable, endpoint func() (*url.URL, error)) ([]T, error) {
	results := []T{}
	seen := map[string]bool{}

	for {
		ep, err := endpoint()
		if err != nil {
			return results, err
		}

		items, next, err := fetchPage[T](ctx, api, ep)
		if err != nil {
			return results, err
		}
		results = append(results, items...)

		if next == "" {
			return results, nil
		}
		if seen[next] {
			return results, fmt.Errorf("canvas: pagination loop on page %q", next)
		}
		seen[next] = true
		q.setPage(next)
	}
}

func fetchPage[T any](ctx context.Context, api *API, ep *url.URL) ([]T, string, error) {
	ctx, cancel := context.WithTimeout(ctx, api.requestTimeout)
	defer cancel()

	body, header, err := api.request(ctx, ep)
	if err != nil {
		return nil, "", fmt.Errorf("canvas: couldn't perform request: %w", err)
	}

	trimmed := bytes.TrimSpace(body)
	if !bytes.HasPrefix(trimmed, []byte("[")) {
		return nil, "", errOutOfBand
	}

	var items []T
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, "", fmt.Errorf("canvas: couldn't parse json response: %w", err)
	}

	next, err := nextPage(header)
	if err != nil {
		return nil, "", err
	}

	return items, next, nil
}

// nextPage extracts the opaque page token from the rel="next" entry of a Link header, e.g.
//
//	<https://x/api/v1/courses?page=2&per_page=100>; rel="next", <...>; rel="last"
func nextPage(header http.Header) (string, error) {
	for _, line := range header.Values("Link") {
		for _, link := range strings.Split(line, ",") {
			parts := strings.Split(link, ";")
			if len(parts) < 2 {
				continue
			}

			isNext := false
			for _, param := range parts[1:] {
				if strings.ReplaceAll(strings.TrimSpace(param), " ", "") == `rel="next"` {
					isNext = true
				}
			}
			if !isNext {
				continue
			}

			raw := strings.Trim(strings.TrimSpace(parts[0]), "<>")
			u, err := url.Parse(raw)
			if err != nil {
				return "", fmt.Errorf("canvas: couldn't parse next link: %w", err)
			}

			page := u.Query().Get("page")
			if page == "" {
				return "", fmt.Errorf("canvas: expected parameter 'page' was empty")
			}
			return page, nil
		}
	}

	return "", nil
}
