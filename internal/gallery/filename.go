package gallery

import (
	"mime"
	"path"
	"regexp"
	"strings"
)

// DefaultArchiveName имя архива, если сервер его не передал
const DefaultArchiveName = "files.zip"

// Для заголовков, которые mime.ParseMediaType не принимает
var filenameRe = regexp.MustCompile(`(?i)filename\*?\s*=\s*(?:UTF-8'[^']*')?(?:"([^"]*)"|([^;]+))`)

// ArchiveFilename извлекает имя файла из Content-Disposition
func ArchiveFilename(disposition string) string {
	if disposition == "" {
		return DefaultArchiveName
	}

	if _, params, err := mime.ParseMediaType(disposition); err == nil {
		if name := cleanFilename(params["filename"]); name != "" {
			return name
		}
	}

	if m := filenameRe.FindStringSubmatch(disposition); m != nil {
		name := m[1]
		if name == "" {
			name = m[2]
		}
		if name = cleanFilename(name); name != "" {
			return name
		}
	}
	return DefaultArchiveName
}

func cleanFilename(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, `\`, "/"))
	if name == "" {
		return ""
	}
	name = path.Base(name)
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return name
}
