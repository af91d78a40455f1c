package jobfolder

// Key layout:
//
//	folder/open/{featureId}     -> Folder JSON (live)
//	folder/archive/{featureId}  -> Folder JSON (closed, read-only)
const (
	prefixOpen    = "folder/open/"
	prefixArchive = "folder/archive/"
)

func openKey(featureID string) []byte { return []byte(prefixOpen + featureID) }

func archiveKey(featureID string) []byte { return []byte(prefixArchive + featureID) }
