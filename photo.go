package main

import (
	"bytes"
	"database/sql"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

const maxPhotoUploadBytes = 25 << 20

var analyzerClient = &http.Client{Timeout: time.Second * 60}

// Photo metadata of a saved analysis result. The image bytes stay in
// the database and are not part of the listing.
type Photo struct {
	ID           string    `json:"id"`
	FileName     string    `json:"fileName"`
	OriginalName string    `json:"originalName,omitempty"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	UploadDate   time.Time `json:"uploadDate"`
}

// POST /api/photo
//
// Proxies the uploaded photo to the external analyzer service and
// streams the annotated JPEG straight back to the client. Nothing is
// persisted on this path.
func analyzePhoto(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxPhotoUploadBytes); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	file, header, err := r.FormFile("photo")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "Photo upload required")
		return
	}
	defer file.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("photo", header.Filename)
	if err != nil {
		respondError(w, fmt.Errorf("could not build analyzer request: %w", err))
		return
	}
	if _, err = io.Copy(part, file); err != nil {
		respondError(w, fmt.Errorf("could not copy photo into analyzer request: %w", err))
		return
	}
	if err = mw.Close(); err != nil {
		respondError(w, fmt.Errorf("could not finish analyzer request: %w", err))
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, analyzerURL, &body)
	if err != nil {
		respondError(w, fmt.Errorf("could not create analyzer request: %w", err))
		return
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := analyzerClient.Do(req)
	if err != nil {
		respondError(w, fmt.Errorf("could not reach analyzer service: %w", err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respondError(w, fmt.Errorf("analyzer service responded with %s", resp.Status))
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	if _, err = io.Copy(w, resp.Body); err != nil {
		log.Printf("could not stream analyzer response: %v\n", err)
	}
}

// POST /api/photo/save
func savePhoto(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxPhotoUploadBytes); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	firstName := r.FormValue("firstName")
	lastName := r.FormValue("lastName")

	file, header, err := r.FormFile("photo")
	if err != nil || firstName == "" || lastName == "" {
		jsonError(w, http.StatusBadRequest, "Missing required fields.")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, fmt.Errorf("could not read uploaded photo: %w", err))
		return
	}

	if _, err = db.ExecContext(r.Context(), `
		INSERT INTO photos (id, file_name, original_name, first_name, last_name, upload_date, photo_data) VALUES
			($1, $2, $3, $4, $5, $6, $7)
	`, uuid.NewString(), uuid.NewString(), header.Filename,
		firstName, lastName, time.Now(), data); err != nil {
		respondError(w, fmt.Errorf("could not insert photo: %w", err))
		return
	}

	respond(w, map[string]interface{}{"success": true}, http.StatusOK)
}

// GET /api/photo
func getPhotos(w http.ResponseWriter, r *http.Request) {
	rows, err := db.QueryContext(r.Context(), `
		SELECT id, file_name, original_name, first_name, last_name, upload_date
		FROM photos
		ORDER BY upload_date DESC
	`)
	if err != nil {
		respondError(w, fmt.Errorf("could not query photos: %w", err))
		return
	}
	defer rows.Close()

	photos := make([]Photo, 0)
	for rows.Next() {
		var photo Photo
		var originalName sql.NullString
		if err = rows.Scan(
			&photo.ID,
			&photo.FileName,
			&originalName,
			&photo.FirstName,
			&photo.LastName,
			&photo.UploadDate,
		); err != nil {
			respondError(w, fmt.Errorf("could not scan photo: %w", err))
			return
		}
		photo.OriginalName = originalName.String
		photos = append(photos, photo)
	}

	if err = rows.Err(); err != nil {
		respondError(w, fmt.Errorf("could not iterate over photos: %w", err))
		return
	}

	respond(w, photos, http.StatusOK)
}

// saveUpload writes an uploaded file into the upload directory under a
// generated name and returns that name.
func saveUpload(file multipart.File, originalName string) (string, error) {
	name := uuid.NewString() + filepath.Ext(originalName)

	dst, err := os.Create(filepath.Join(uploadDir, name))
	if err != nil {
		return "", fmt.Errorf("could not create upload file: %w", err)
	}
	defer dst.Close()

	if _, err = io.Copy(dst, file); err != nil {
		return "", fmt.Errorf("could not write upload file: %w", err)
	}
	return name, nil
}
