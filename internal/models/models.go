package models

// All returns every model migrated at startup, in dependency order
func All() []interface{} {
	return []interface{}{
		&Course{},
		&Module{},
		&Question{},
		&Submission{},
		&Enrollment{},
		&UserQuestionGrade{},
		&UserModuleGrade{},
		&UserCourseGrade{},
	}
}
