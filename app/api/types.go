package api

import (
	"sync"

	"mediakeep/app/downloader"
	"mediakeep/app/storage"
	"mediakeep/app/tasks"
	"mediakeep/app/ytdlp"
)

// ScanSettings is the runtime-adjustable scan configuration.
type ScanSettings struct {
	SourceDir   string `json:"source_dir"`
	FilePattern string `json:"file_pattern"`
	Recursive   bool   `json:"recursive"`
}

type Handler struct {
	store      *storage.Store
	runner     *tasks.Runner
	tracker    *tasks.Tracker
	downloader *downloader.Downloader
	ytdlp      *ytdlp.Runner
	version    string

	mu   sync.Mutex
	scan ScanSettings
}

func NewHandler(store *storage.Store, runner *tasks.Runner, dl *downloader.Downloader, yt *ytdlp.Runner, scan ScanSettings, version string) *Handler {
	return &Handler{
		store:      store,
		runner:     runner,
		tracker:    runner.Tracker(),
		downloader: dl,
		ytdlp:      yt,
		scan:       scan,
		version:    version,
	}
}

type tagsUpdateRequest struct {
	Tags []string `json:"tags"`
}

type categoryUpdateRequest struct {
	Category string `json:"category"`
}

type noteUpdateRequest struct {
	Note string `json:"note"`
}

type scanRequest struct {
	SourceDir   string `json:"source_dir"`
	FilePattern string `json:"file_pattern"`
	Recursive   *bool  `json:"recursive"`
}

type idsRequest struct {
	IDs []string `json:"ids"`
}

type configUpdateRequest struct {
	SourceDir          *string `json:"source_dir"`
	FilePattern        *string `json:"file_pattern"`
	Recursive          *bool   `json:"recursive"`
	CookiesFromBrowser *string `json:"cookies_from_browser"`
	CookiesFile        *string `json:"cookies_file"`
}
