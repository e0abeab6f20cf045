package usecase

import "fmt"

type stepSpec struct {
	name     string
	details  string
	subtasks []string
}

var steps = [...]stepSpec{
	{"Topic Analysis", "Analyzing topic type and gathering contextual information",
		[]string{"Topic classification", "News relevance analysis", "Event detection"}},
	{"Initial Research Planning", "Breaking down topic into searchable components",
		[]string{"Identifying key concepts", "Creating search strategies", "Formulating queries"}},
	{"Topic Structuring", "Identifying and organizing research subtopics",
		[]string{"Analyzing topic dimensions", "Mapping content structure", "Planning research areas"}},
	{"Academic Research", "Researching academic papers and incorporating scholarly insights",
		[]string{"Finding relevant papers", "Analyzing academic content", "Extracting key insights", "Collecting statistics"}},
	{"Deep Research", "Researching and collecting data for each subtopic", nil},
	{"Data Organization", "Organizing research data into structured formats",
		[]string{"Analyzing data relationships", "Creating data tables", "Structuring information"}},
	{"Draft Creation", "Creating initial document sections",
		[]string{"Writing abstract", "Creating introduction", "Drafting conclusion"}},
	{"Document Assembly", "Assembling all components into a coherent document",
		[]string{"Combining sections", "Formatting content", "Structuring document"}},
	{"References & Citations", "Finalizing citations and reference formatting",
		[]string{"Organizing citations", "Formatting references", "Verifying sources"}},
	{"Final Output", "Converting to final presentation format",
		[]string{"Formatting for PDF", "Generating final document", "Quality check"}},
}

// future is the result of work started in one step and collected in a
// later one.
type future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// goFuture runs fn on its own goroutine. A panic in fn becomes the error.
func goFuture[T any](fn func() (T, error)) *future[T] {
	f := &future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				f.err = fmt.Errorf("panic: %v", r)
			}
		}()
		f.val, f.err = fn()
	}()
	return f
}

// wait blocks until fn has returned.
func (f *future[T]) wait() (T, error) {
	<-f.done
	return f.val, f.err
}
