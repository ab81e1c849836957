// Package models is a small library of atomic and coupled models built on the
// sim kernel: a periodic counter and the classic generator, processor,
// transducer (GPT) experimental frame. The topology loader instantiates them
// by kind name; tests and examples use them as reference models.
package models
