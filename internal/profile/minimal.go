package profile

// minimal only runs the structural checks; it knows no specific order.
func minimal() *Profile {
	return &Profile{Name: "minimal", EmptyRatio: DefaultEmptyRatio}
}
