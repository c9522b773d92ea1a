package handlers

import (
	"github.com/go-chi/chi/v5"

	"project-polaris/backend/internal/middleware"
)

// Register mounts every route on r.
func (a *API) Register(r chi.Router) {
	r.Get("/ws/{projectId}", a.ServeWs)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(a.resolver))

		r.Post("/projects", a.CreateProject)
		r.Get("/projects", a.GetUserProjects)
		r.Post("/suggestion", a.Suggest)

		r.Route("/project/{projectId}", func(r chi.Router) {
			r.Get("/", a.GetProject)
			r.Put("/rename", a.RenameProject)
			r.Delete("/", a.DeleteProject)

			r.Get("/files", a.GetFiles)
			r.Get("/tree", a.GetFileTree)
			r.Get("/children", a.GetChildren)
			r.Post("/files", a.CreateFileNode)
			r.Post("/files/upload", a.UploadFile)
		})

		r.Route("/file/{fileId}", func(r chi.Router) {
			r.Get("/", a.GetFileNode)
			r.Get("/path", a.GetFilePath)
			r.Get("/blob", a.DownloadBlob)
			r.Put("/rename", a.RenameFileNode)
			r.Put("/content", a.SaveFileContent)
			r.Delete("/", a.DeleteFileNode)
		})
	})
}
