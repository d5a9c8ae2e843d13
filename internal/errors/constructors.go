package errors

// Convenience functions for the publish error taxonomy

// Configuration errors

func ConfigurationError(field, reason string) *PublishError {
	return New(CategoryConfig, SeverityFatal, "invalid publish configuration").
		WithContext("field", field).
		WithContext("reason", reason)
}

func DescriptorNotFound(path string, cause error) *PublishError {
	return Wrap(cause, CategoryConfig, SeverityFatal, "descriptor file is not readable").
		WithContext("descriptor", path)
}

func ConfigNotFound(path string) *PublishError {
	return New(CategoryConfig, SeverityFatal, "configuration file not found").
		WithContext("path", path)
}

func ValidationFailed(field, reason string) *PublishError {
	return New(CategoryValidation, SeverityFatal, "validation failed").
		WithContext("field", field).
		WithContext("reason", reason)
}

// Execution errors

func LayoutResolutionError(name string, cause error) *PublishError {
	return Wrap(cause, CategoryLayout, SeverityFatal, "repository layout could not be resolved").
		WithContext("layout", name)
}

// DeployExecutionError surfaces an engine failure without reclassifying it.
func DeployExecutionError(cause error) *PublishError {
	return Wrap(cause, CategoryDeploy, SeverityFatal, "deploy execution failed")
}

func MisuseError(reason string) *PublishError {
	return New(CategoryMisuse, SeverityFatal, "deploy operation misuse").
		WithContext("reason", reason)
}

// Infrastructure errors

func WorkspaceError(operation string, cause error) *PublishError {
	return Wrap(cause, CategoryFileSystem, SeverityFatal, "workspace operation failed").
		WithContext("operation", operation)
}

func StorageError(operation string, cause error) *PublishError {
	return Wrap(cause, CategoryFileSystem, SeverityError, "staging storage operation failed").
		WithContext("operation", operation)
}

func HistoryError(operation string, cause error) *PublishError {
	return Wrap(cause, CategoryHistory, SeverityWarning, "publish history unavailable").
		WithContext("operation", operation)
}

func InternalError(message string, cause error) *PublishError {
	return Wrap(cause, CategoryInternal, SeverityFatal, message)
}
