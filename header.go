package exe2dll

import "debug/pe"

// SetDLLFlag adds IMAGE_FILE_DLL, keeping every other characteristic.
func SetDLLFlag(img *Image) {
	img.SetCharacteristics(img.Characteristics() | pe.IMAGE_FILE_DLL)
}

// RedirectEntryPoint points AddressOfEntryPoint at rva and returns the
// previous value. Read it out first: the old value is gone afterwards.
func RedirectEntryPoint(img *Image, rva uint32) uint32 {
	orig := img.EntryPoint()
	img.SetEntryPoint(rva)
	return orig
}

// SetExportDirectory repoints the export data directory at an
// IMAGE_EXPORT_DIRECTORY located at rva.
func SetExportDirectory(img *Image, rva uint32) error {
	dir, err := img.DirectoryEntry(pe.IMAGE_DIRECTORY_ENTRY_EXPORT)
	if err != nil {
		return err
	}
	dir.Set(rva, IMAGE_SIZEOF_EXPORT_DIR)
	return nil
}
