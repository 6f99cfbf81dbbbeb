package api

import (
	"errors"
	"net/http"

	"github.com/sihhaapp/sihha/internal/policy"
	"github.com/sihhaapp/sihha/internal/storage"
	"github.com/sihhaapp/sihha/internal/types"
)

const maxUploadMemory = 32 << 20

// formFile reads the category's multipart field. It writes the error response
// and returns false when the file is missing.
func (a *App) formFile(w http.ResponseWriter, r *http.Request, cat storage.Category) (storage.File, func(), bool) {
	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxPrescriptionBytes+maxUploadMemory)
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		a.writeError(w, cat.Missing)
		return storage.File{}, nil, false
	}

	f, hdr, err := r.FormFile(cat.Field)
	if err != nil {
		a.writeError(w, cat.Missing)
		return storage.File{}, nil, false
	}

	return storage.File{
		Name:        hdr.Filename,
		ContentType: hdr.Header.Get("Content-Type"),
		Size:        hdr.Size,
		Body:        f,
	}, func() { f.Close() }, true
}

func (a *App) upload(cat storage.Category) http.HandlerFunc {
	key := "imageUrl"
	if cat == storage.Audio {
		key = "audioUrl"
	}

	return func(w http.ResponseWriter, r *http.Request) {
		user := caller(r)
		if err := policy.Check(policy.UploadMedia, user.Role); err != nil {
			a.writeError(w, err)
			return
		}

		file, done, ok := a.formFile(w, r, cat)
		if !ok {
			return
		}
		defer done()

		url, err := a.objects.Put(r.Context(), cat, user.Id, file)
		if err != nil {
			a.writeError(w, err)
			return
		}

		a.writeJson(w, http.StatusCreated, map[string]string{key: url})
	}
}

func (a *App) uploadPrescription(w http.ResponseWriter, r *http.Request) {
	user := caller(r)
	if err := policy.Check(policy.UploadPrescription, user.Role); err != nil {
		a.writeError(w, err)
		return
	}

	file, done, ok := a.formFile(w, r, storage.Prescription)
	if !ok {
		return
	}
	defer done()

	if err := storage.ValidatePrescription(file); err != nil {
		a.writeError(w, err)
		return
	}

	url, err := a.objects.Put(r.Context(), storage.Prescription, user.Id, file)
	if err != nil {
		a.writeError(w, err)
		return
	}

	a.writeJson(w, http.StatusCreated, map[string]string{"pdfUrl": url})
}

func (a *App) uploadPhoto(w http.ResponseWriter, r *http.Request) {
	user := caller(r)

	file, done, ok := a.formFile(w, r, storage.Photo)
	if !ok {
		return
	}
	defer done()

	url, err := a.objects.Put(r.Context(), storage.Photo, user.Id, file)
	if err != nil {
		a.writeError(w, err)
		return
	}

	updated, err := a.repo.UpdatePhoto(r.Context(), user.Id, url)
	if err != nil {
		a.writeError(w, err)
		return
	}

	a.writeJson(w, http.StatusOK, map[string]any{"user": types.NewUser(updated)})
}
