package mapping

import (
	"reflect"
	"time"

	"github.com/arthur-debert/nanomap/nanomap/typetag"
)

type animal interface{ Sound() string }

type dog struct {
	Name string `doc:"name"`
}

func (dog) Sound() string { return "woof" }

type cat struct {
	Lives int `doc:"lives"`
}

func (cat) Sound() string { return "meow" }

type address struct {
	City string `doc:"city"`
}

type audit struct {
	CreatedBy string `doc:"created_by"`
}

type person struct {
	ID       string            `doc:"_id"`
	Name     string            `doc:"name"`
	Pet      animal            `doc:"pet"`
	Pets     []animal          `doc:"pets"`
	ByName   map[string]animal `doc:"by_name"`
	Home     address           `doc:"home"`
	Work     *address          `doc:"work,omitempty"`
	Seen     time.Time         `doc:"seen"`
	Note     string            `doc:"note,omitempty"`
	Internal string            `doc:"-"`
	Audit    audit             `doc:",squash"`
}

func newTestCodec() *typetag.Codec {
	return typetag.MustCodec(
		typetag.WithTable(map[reflect.Type]string{
			reflect.TypeOf(dog{}):    "dog",
			reflect.TypeOf(cat{}):    "cat",
			reflect.TypeOf(person{}): "person",
		}),
		typetag.WithStrict(true),
	)
}

var (
	animalType = reflect.TypeOf((*animal)(nil)).Elem()
	personType = reflect.TypeOf(person{})
)
