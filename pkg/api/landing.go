package api

import (
	"fmt"
	"html/template"
	"net/http"

	"github.com/marmos91/bytebeam/internal/bytesize"
	"github.com/marmos91/bytebeam/internal/logger"
	"github.com/marmos91/bytebeam/pkg/relay"
)

// rootLanding is served at /. Minted URLs are the only real entry points.
const rootLanding = "If you were sent a link here, it probably doesn't exist anymore."

// downloadLandingTemplate is shown to browsers that open a download link.
// It deliberately carries no scripts or styling; OpenGraph tags make chat
// clients unfurl the link with the file name and size.
var downloadLandingTemplate = template.Must(template.New("download").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>ByteBeam File Download: {{.FileName}}</title>
<meta property="og:title" content="ByteBeam File Download">
<meta property="og:description" content="File download for {{.FileName}} [{{.FileSize}}]">
</head>
<body>
<h1>ByteBeam File Download</h1>
<p>This download can only be started once. If it fails, you will need to ask the sender to re-upload</p>
<ul>
<li>File name: {{.FileName}}</li>
<li>File size: {{.FileSize}}</li>
<li>Compression: {{.Compression}}</li>
</ul>
<a href="?download=true" download>Click here to start the download</a>
<br>
<i>You may also download using curl or wget using this same url</i>
</body>
</html>
`))

// uploadLandingTemplate is shown when a browser opens an upload link; the
// form posts back to the same path.
var uploadLandingTemplate = template.Must(template.New("upload").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>ByteBeam File Upload</title>
<meta property="og:title" content="ByteBeam Web Upload">
<meta property="og:description" content="File Upload">
</head>
<body>
<h1>ByteBeam File Upload</h1>
<p>You can only begin an upload once, if the upload fails you will need to ask for a new upload link</p>
<form method="POST" action="{{.Action}}" enctype="multipart/form-data">
<input name="file" type="file">
<input type="submit" value="Upload">
</form>
<p>You can also upload the file using curl</p>
<tt>curl -F 'file=@/path/to/file' http://this-url/and/path</tt>
</body>
</html>
`))

type downloadLandingData struct {
	FileName    string
	FileSize    string
	Compression string
}

type uploadLandingData struct {
	Action string
}

// fileSizeString renders the declared size for the landing page, both
// human-readable and exact.
func fileSizeString(size int64) string {
	return fmt.Sprintf("%s (%d bytes)", bytesize.ByteSize(size), size)
}

// renderDownloadLanding writes the browser landing page for a ticket.
func renderDownloadLanding(w http.ResponseWriter, meta *relay.FileMetadata) {
	data := downloadLandingData{
		FileName:    meta.FileName,
		FileSize:    fileSizeString(meta.FileSize.FileSize),
		Compression: meta.Compression.String(),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := downloadLandingTemplate.Execute(w, data); err != nil {
		logger.Error("Failed to render download landing", logger.Err(err))
	}
}

// renderUploadLanding writes the browser upload form for a ticket.
func renderUploadLanding(w http.ResponseWriter, ticket, key string) {
	data := uploadLandingData{
		Action: "/" + ticket + "/" + key,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := uploadLandingTemplate.Execute(w, data); err != nil {
		logger.Error("Failed to render upload landing", logger.Err(err))
	}
}
