package lang

func init() {
	Register(&LanguageSpec{
		Language:       Kotlin,
		FileExtensions: []string{".kt", ".kts"},
		FunctionNodeTypes: []string{
			"function_declaration",
			"secondary_constructor",
		},
		ClassNodeTypes: []string{
			"class_declaration",
			"object_declaration",
		},
		ModuleNodeTypes:   []string{"source_file"},
		CallNodeTypes:     []string{"call_expression"},
		ImportNodeTypes:   []string{"import"},
		ImportFromTypes:   []string{"import"},
		PackageIndicators: []string{"build.gradle.kts", "build.gradle"},

		DecoratorNodeTypes: []string{"annotation"},
	})
}
